package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
)

// JSONMiddleware rejects bodies that are not JSON.
func JSONMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
			ct := c.GetHeader("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, APIResponse{
					Success: false,
					Error:   "Content-Type must be application/json",
				})
				return
			}
		}
		c.Next()
	}
}

func RequestLogMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request failed", fields)
			return
		}
		log.Debug("request served", fields)
	}
}

// RecoveryMiddleware answers a panicking handler with the generic apology.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked", map[string]interface{}{
					"path":  c.Request.URL.Path,
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, APIResponse{
					Success: false,
					Error:   apperrors.GenericApology,
				})
			}
		}()
		c.Next()
	}
}
