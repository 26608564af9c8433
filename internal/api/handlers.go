package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/models"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CreateSessionRequest struct {
	Metadata map[string]interface{} `json:"metadata"`
}

type TurnRequest struct {
	Input string `json:"input"`
	Mode  string `json:"mode"`
}

type TurnResponse struct {
	SessionID    string              `json:"sessionId"`
	Answer       string              `json:"answer"`
	Source       string              `json:"source"`
	Mode         models.Mode         `json:"mode"`
	Action       string              `json:"action,omitempty"`
	ActionResult string              `json:"actionResult,omitempty"`
	Sources      []models.SourceRef  `json:"sources,omitempty"`
	Metadata     models.TurnMetadata `json:"metadata"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, APIResponse{Success: false, Error: msg})
}

// storeError maps a session store failure to a response.
func (s *Server) storeError(c *gin.Context, op string, err error) {
	stdErr := apperrors.Normalize(err)
	if stdErr.Code == apperrors.ErrCodeSessionNotFound {
		fail(c, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Error("session store failed", map[string]interface{}{
		"operation": op,
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
	fail(c, http.StatusInternalServerError, "session storage is unavailable")
}

func queryLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sess, err := s.store.CreateSession(c.Request.Context(), req.Metadata)
	if err != nil {
		s.storeError(c, "create_session", err)
		return
	}
	ok(c, http.StatusCreated, sess)
}

func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.store.ListSessions(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		s.storeError(c, "list_sessions", err)
		return
	}
	ok(c, http.StatusOK, sessions)
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, "get_session", err)
		return
	}
	ok(c, http.StatusOK, sess)
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.DeleteSession(c.Request.Context(), id); err != nil {
		s.storeError(c, "delete_session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getMessages(c *gin.Context) {
	msgs, err := s.store.GetHistory(c.Request.Context(), c.Param("id"), queryLimit(c, 0))
	if err != nil {
		s.storeError(c, "get_history", err)
		return
	}
	ok(c, http.StatusOK, msgs)
}

func (s *Server) searchMessages(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, "query parameter q is required")
		return
	}
	msgs, err := s.store.SearchMessages(c.Request.Context(), q, queryLimit(c, 0))
	if err != nil {
		s.storeError(c, "search_messages", err)
		return
	}
	ok(c, http.StatusOK, msgs)
}

// postTurn runs one turn for a session. Turns of the same session never
// overlap.
func (s *Server) postTurn(c *gin.Context) {
	id := c.Param("id")

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	modeName := req.Mode
	if modeName == "" {
		modeName = string(s.config.DefaultMode)
	}
	mode, err := models.ParseMode(modeName)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ctx := c.Request.Context()
	if s.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TurnTimeout)
		defer cancel()
	}

	if _, err := s.store.GetSession(ctx, id); err != nil {
		s.storeError(c, "get_session", err)
		return
	}
	stored, err := s.store.GetHistory(ctx, id, s.config.HistoryLimit)
	if err != nil {
		s.storeError(c, "get_history", err)
		return
	}

	state := models.ConversationState{Mode: mode, History: models.ToHistory(stored)}
	out := s.turns.ProcessTurn(ctx, state, req.Input)

	if len(out.History) > len(state.History) {
		if err := s.persistExchange(ctx, id, out); err != nil {
			s.storeError(c, "save_message", err)
			return
		}
	}

	resp := TurnResponse{
		SessionID:    id,
		Answer:       out.FinalAnswer,
		Source:       out.AnswerSource,
		Mode:         out.Mode,
		ActionResult: out.ActionResult,
		Sources:      out.Sources,
		Metadata:     out.Metadata,
	}
	if out.Action != nil {
		resp.Action = out.Action.Name
	}
	ok(c, http.StatusOK, resp)
}

func (s *Server) persistExchange(ctx context.Context, id string, out models.ConversationState) error {
	if err := s.store.SaveMessage(ctx, id, models.RoleUser, out.UserInput, map[string]interface{}{
		"mode": string(out.Mode),
	}); err != nil {
		return err
	}

	meta := map[string]interface{}{
		"source": out.AnswerSource,
		"mode":   string(out.Metadata.Mode),
	}
	if out.Action != nil {
		meta["action"] = out.Action.Name
	}
	if out.Metadata.Score > 0 {
		meta["score"] = out.Metadata.Score
	}
	if out.Metadata.FallbackReason != "" {
		meta["fallback_reason"] = out.Metadata.FallbackReason
	}
	return s.store.SaveMessage(ctx, id, models.RoleAssistant, out.FinalAnswer, meta)
}
