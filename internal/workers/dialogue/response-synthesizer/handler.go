// internal/workers/dialogue/response-synthesizer/handler.go
package responsesynthesizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/metrics"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/providers/genai"
	qualityscorer "dialogue-engine/internal/workers/dialogue/quality-scorer"
)

const (
	TaskType = "response-synthesizer"
)

type Handler struct {
	config   *Config
	provider genai.Provider
	logger   logger.Logger
}

func NewHandler(config *Config, provider genai.Provider, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return &Output{Answer: h.Synthesize(ctx, input.State)}, nil
}

// Synthesize composes the final answer from the turn's grounding. It never
// fails: a provider error or empty text yields the generic apology.
func (h *Handler) Synthesize(ctx context.Context, state models.ConversationState) string {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	resp, err := h.provider.Complete(ctx, &genai.Request{
		Model: h.config.Model,
		Messages: []genai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: h.Grounding(state)},
		},
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		code := genai.ErrorCode(err)
		h.logger.Error("response generation failed", map[string]interface{}{
			"errorCode": string(code),
			"error":     err.Error(),
		})
		metrics.StageFailures.WithLabelValues(TaskType, string(code)).Inc()
		return apperrors.GenericApology
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		h.logger.Warn("provider returned an empty answer", nil)
		metrics.StageFailures.WithLabelValues(TaskType, string(apperrors.ErrCodeGenAIEmptyResponse)).Inc()
		return apperrors.GenericApology
	}

	if len(state.Sources) > 0 {
		answer += "\n\n---\n\n" + FormatSources(state.Sources)
	}
	if len(state.Evidence) > 0 {
		answer += "\n\n---\n" + disclaimer
	}
	return answer
}

// Grounding renders everything the model may answer from.
func (h *Handler) Grounding(state models.ConversationState) string {
	var b strings.Builder
	for _, m := range state.RecentHistory(h.config.HistoryMessages) {
		fmt.Fprintf(&b, "%s: %s\n", capitalize(m.Role), m.Content)
	}

	action := noneText
	if state.Action != nil {
		action = state.Action.Name
	}
	result := state.ActionResult
	if result == "" {
		result = state.RetrievedContext
	}
	if result == "" {
		result = noneText
	}

	fmt.Fprintf(&b, "User requested: %s\n", state.UserInput)
	fmt.Fprintf(&b, "Executed function: %s\n", action)
	fmt.Fprintf(&b, "Execution result: %s\n", result)

	if len(state.Evidence) > 0 {
		combined, limited := CombineEvidence(state.Evidence, h.config.ItemLimit, h.config.CombinedLimit, h.config.LimitedContent)
		b.WriteString("\nWeb sources content:\n")
		b.WriteString(combined)
		b.WriteString("\n")
		if limited {
			b.WriteString("\n" + limitedWarning + "\n")
		}
	}
	return b.String()
}

// CombineEvidence joins the item texts, each capped at itemLimit runes, and
// caps the result at combinedLimit runes plus a truncation note. limited is
// set when the joined text is shorter than minContent.
func CombineEvidence(items []models.EvidenceItem, itemLimit, combinedLimit, minContent int) (combined string, limited bool) {
	parts := make([]string, 0, len(items))
	for i, it := range items {
		parts = append(parts, fmt.Sprintf("[source %d] %s", i+1, clip(it.Text, itemLimit)))
	}
	combined = strings.Join(parts, evidenceSeparator)

	n := utf8.RuneCountInString(combined)
	limited = n < minContent
	if combinedLimit > 0 && n > combinedLimit {
		combined = clip(combined, combinedLimit) + truncationNote
	}
	return combined, limited
}

// FormatSources renders the Sources section. Output depends only on its input.
func FormatSources(sources []models.SourceRef) string {
	var b strings.Builder
	b.WriteString("## 📚 Sources\n")
	for i, s := range sources {
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "\n**%d. %s** %s\n", i+1, title, qualityscorer.Glyph(s.QualityScore))
		if s.URL != "" {
			fmt.Fprintf(&b, "🔗 %s\n", s.URL)
		}
		fmt.Fprintf(&b, "⭐ Quality: %.0f%%\n", s.QualityScore*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func clip(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
