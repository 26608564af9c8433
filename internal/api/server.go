// Package api exposes the dialogue engine and session history over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/session"
)

// TurnProcessor runs one dialogue turn.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, state models.ConversationState, input string) models.ConversationState
}

// ReadinessCheck reports whether one backing service is reachable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Config struct {
	// HistoryLimit is how many stored messages are loaded into a turn.
	HistoryLimit int
	DefaultMode  models.Mode
	TurnTimeout  time.Duration
	EnableCORS   bool
	Debug        bool
	Version      string
}

func DefaultConfig() *Config {
	return &Config{
		HistoryLimit: 20,
		DefaultMode:  models.ModeHybrid,
		TurnTimeout:  2 * time.Minute,
		EnableCORS:   true,
	}
}

type Server struct {
	config    *Config
	engine    *gin.Engine
	turns     TurnProcessor
	store     session.Store
	checks    []ReadinessCheck
	locks     *sessionLocks
	logger    logger.Logger
	startTime time.Time
}

func NewServer(config *Config, turns TurnProcessor, store session.Store, log logger.Logger, checks ...ReadinessCheck) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(RecoveryMiddleware(log))
	engine.Use(RequestLogMiddleware(log))
	if config.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		config:    config,
		engine:    engine,
		turns:     turns,
		store:     store,
		checks:    checks,
		locks:     newSessionLocks(),
		logger:    log.WithFields(map[string]interface{}{"component": "api"}),
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.Use(JSONMiddleware())

	sessions := api.Group("/sessions")
	{
		sessions.POST("", s.createSession)
		sessions.GET("", s.listSessions)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.deleteSession)
		sessions.GET("/:id/messages", s.getMessages)
		sessions.POST("/:id/turns", s.postTurn)
	}
	api.GET("/messages/search", s.searchMessages)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": s.config.Version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, chk := range s.checks {
		if err := chk.Check(ctx); err != nil {
			failed[chk.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
