// internal/workers/dialogue/action-dispatcher/handler.go
package actiondispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/metrics"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/providers/redmine"
	webevidence "dialogue-engine/internal/workers/dialogue/web-evidence"
	"dialogue-engine/pkg/registry"
)

const (
	TaskType = "action-dispatcher"
)

var (
	ErrInvalidArgument = errors.New("INVALID_ARGUMENT")
	ErrActionPanicked  = errors.New("ACTION_PANICKED")
)

// WebGatherer is the part of the web evidence worker get_google_search needs.
type WebGatherer interface {
	Gather(ctx context.Context, query string, n int) *webevidence.GatherResult
}

type actionFunc func(ctx context.Context, args Args) (string, error)

type Handler struct {
	config    *Config
	redmine   redmine.Client
	web       WebGatherer
	catalogue *registry.Catalogue
	logger    logger.Logger
	now       func() time.Time
	actions   map[string]actionFunc
}

func NewHandler(config *Config, client redmine.Client, web WebGatherer, catalogue *registry.Catalogue, log logger.Logger) *Handler {
	h := &Handler{
		config:    config,
		redmine:   client,
		web:       web,
		catalogue: catalogue,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:       time.Now,
	}
	h.actions = map[string]actionFunc{
		registry.ActionAccessToRedmine: h.accessToRedmine,
		registry.ActionGetIssueByDate:  h.getIssueByDate,
		registry.ActionGetIssueByID:    h.getIssueByID,
		registry.ActionGetIssueByName:  h.getIssueByName,
		registry.ActionGetIssueStatus:  h.getIssueStatus,
		registry.ActionGetMyIssues:     h.getMyIssues,
		registry.ActionGetIssueHours:   h.getIssueHours,
		registry.ActionFillIssueHours:  h.fillIssueHours,
		registry.ActionGetUserStatus:   h.getUserStatus,
		registry.ActionSetUserStatus:   h.setUserStatus,
		registry.ActionCreateIssue:     h.createIssue,
		registry.ActionAssignIssue:     h.assignIssue,
		registry.ActionGetWikiInfo:     h.getWikiInfo,
		registry.ActionGetGoogleSearch: h.getGoogleSearch,
	}
	return h
}

// WithClock replaces the clock used for relative dates, for tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// Supports reports whether name is in the dispatch table.
func (h *Handler) Supports(name string) bool {
	_, ok := h.actions[name]
	return ok
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return &Output{State: h.Dispatch(ctx, input.State)}, nil
}

// Dispatch runs the action chosen for this turn and stores its text in
// ActionResult. A missing or unknown action leaves the state untouched apart
// from the node. Failures become user-facing text, never errors.
func (h *Handler) Dispatch(ctx context.Context, state models.ConversationState) models.ConversationState {
	state.Node = models.NodeExecuteFunction

	if state.Action == nil {
		return state
	}
	name := state.Action.Name
	fn, ok := h.actions[name]
	if !ok {
		h.logger.Warn("unknown action, skipping", map[string]interface{}{"action": name})
		metrics.ActionsDispatched.WithLabelValues(name, "unknown").Inc()
		return state
	}

	args := Args(state.Action.Arguments)
	if args == nil {
		args = Args{}
	}
	h.checkArguments(name, args)

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := h.run(ctx, name, fn, args)
	if err != nil {
		metrics.ActionsDispatched.WithLabelValues(name, "failed").Inc()
		h.logger.Error("action failed", map[string]interface{}{
			"action":   name,
			"error":    err.Error(),
			"duration": time.Since(start).String(),
		})
		state.ActionResult = failureText(name, err)
		return state
	}

	metrics.ActionsDispatched.WithLabelValues(name, "ok").Inc()
	h.logger.Info("action executed", map[string]interface{}{
		"action":   name,
		"duration": time.Since(start).String(),
	})
	state.ActionResult = result
	return state
}

func (h *Handler) run(ctx context.Context, name string, fn actionFunc, args Args) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("action panicked", map[string]interface{}{
				"action": name,
				"panic":  fmt.Sprint(r),
				"stack":  string(debug.Stack()),
			})
			result = ""
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
	}()
	return fn(ctx, args)
}

// checkArguments validates args against the catalogue schema. Violations are
// reported but the action still runs; actions that send a value upstream
// reject a missing one themselves.
func (h *Handler) checkArguments(name string, args Args) {
	if h.catalogue == nil {
		return
	}
	res, err := h.catalogue.Validate(name, args)
	if err != nil {
		h.logger.Debug("no schema for action", map[string]interface{}{"action": name})
		return
	}
	if res.Valid {
		return
	}
	metrics.ActionArgumentViolations.WithLabelValues(name).Inc()
	h.logger.Warn("action arguments do not match schema", map[string]interface{}{
		"action":     name,
		"violations": res.GetErrorMessages(),
	})
}

func failureText(name string, err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return fmt.Sprintf("❌ Could not run %s: %v", name, err)
	case errors.Is(err, redmine.ErrNotConfigured):
		return "❌ Redmine is not configured. Set the Redmine URL and API key."
	case errors.Is(err, redmine.ErrNotFound):
		return fmt.Sprintf("❌ Not found in Redmine (%s)", name)
	default:
		return fmt.Sprintf("❌ Error while running %s: %v", name, err)
	}
}
