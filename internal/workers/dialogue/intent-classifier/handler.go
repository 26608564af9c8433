// internal/workers/dialogue/intent-classifier/handler.go
package intentclassifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/metrics"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/providers/genai"
	"dialogue-engine/pkg/registry"
)

const (
	TaskType = "intent-classifier"
)

var (
	ErrArgumentsInvalid = errors.New("ACTION_ARGUMENTS_INVALID")
)

type Handler struct {
	config    *Config
	provider  genai.Provider
	catalogue *registry.Catalogue
	tools     []genai.Tool
	logger    logger.Logger
}

func NewHandler(config *Config, provider genai.Provider, catalogue *registry.Catalogue, log logger.Logger) *Handler {
	defs := catalogue.Tools()
	tools := make([]genai.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, genai.Tool{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return &Handler{
		config:    config,
		provider:  provider,
		catalogue: catalogue,
		tools:     tools,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return &Output{State: h.Classify(ctx, input.State)}, nil
}

// Classify asks the provider to pick at most one action and sets Route.
func (h *Handler) Classify(ctx context.Context, state models.ConversationState) models.ConversationState {
	state.Node = models.NodeAnalyzeIntent

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	resp, err := h.provider.Complete(ctx, &genai.Request{
		Model:       h.config.Model,
		Messages:    h.buildMessages(state),
		Tools:       h.tools,
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		code := genai.ErrorCode(err)
		h.logger.Error("intent analysis failed", map[string]interface{}{
			"errorCode": string(code),
			"error":     err.Error(),
		})
		metrics.StageFailures.WithLabelValues(TaskType, string(code)).Inc()
		state.Route = models.RouteHandleError
		state.ErrorMessage = apperrors.UserMessage(code)
		return state
	}

	if len(resp.ToolCalls) == 0 {
		h.logger.Info("no action selected", nil)
		state.Route = models.RouteSynthesizeDirectly
		return state
	}

	call := resp.ToolCalls[0]
	if len(resp.ToolCalls) > 1 {
		discarded := make([]string, 0, len(resp.ToolCalls)-1)
		for _, c := range resp.ToolCalls[1:] {
			discarded = append(discarded, c.Name)
		}
		h.logger.Warn("multiple actions selected, keeping the first", map[string]interface{}{
			"action":    call.Name,
			"discarded": discarded,
		})
	}

	args, err := ParseArguments(call.Arguments)
	if err != nil {
		h.logger.Warn("action arguments could not be parsed", map[string]interface{}{
			"action":    call.Name,
			"arguments": call.Arguments,
			"error":     err.Error(),
		})
		metrics.StageFailures.WithLabelValues(TaskType, string(apperrors.ErrCodeActionArgumentsInvalid)).Inc()
		state.ActionResult = fmt.Sprintf("%s (action: %s)", apperrors.UserMessage(apperrors.ErrCodeActionArgumentsInvalid), call.Name)
		state.Route = models.RouteSynthesizeDirectly
		return state
	}

	if state.Action != nil {
		h.logger.Warn("action already set for this turn, ignoring", map[string]interface{}{
			"existing": state.Action.Name,
			"action":   call.Name,
		})
	} else {
		state.Action = &models.Action{Name: call.Name, Arguments: args}
	}

	h.logger.Info("action selected", map[string]interface{}{
		"action":    call.Name,
		"arguments": args,
	})
	state.Route = models.RouteExecuteFunction
	return state
}

func (h *Handler) buildMessages(state models.ConversationState) []genai.Message {
	system := systemPrompt
	if preview := truncate(state.RetrievedContext, h.config.ContextPreview); preview != "" {
		system += "\n\nKnowledge base information: " + preview
	}

	msgs := []genai.Message{{Role: "system", Content: system}}
	for _, m := range state.RecentHistory(h.config.HistoryMessages) {
		msgs = append(msgs, genai.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, genai.Message{Role: "user", Content: state.UserInput})
}

// ParseArguments decodes the provider's argument JSON. Empty text is an empty
// object.
func ParseArguments(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgumentsInvalid, err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max])
}
