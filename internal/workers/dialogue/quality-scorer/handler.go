// internal/workers/dialogue/quality-scorer/handler.go
package qualityscorer

import (
	"context"
	"strings"
	"unicode/utf8"

	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/models"
)

const (
	TaskType = "quality-scorer"

	// Score used when scoring itself fails.
	FallbackScore = 0.3

	baseHundredths = 50
)

// Glyphs for the Sources section.
const (
	GlyphHigh   = "🟢"
	GlyphMedium = "🟡"
	GlyphLow    = "🔴"
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute scores every item in place order and returns the mean score.
func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	out := &Output{Items: make([]models.EvidenceItem, len(input.Items))}
	total := 0.0
	for i, item := range input.Items {
		item.QualityScore = h.Score(item)
		out.Items[i] = item
		total += item.QualityScore
	}
	if len(input.Items) > 0 {
		out.AverageScore = total / float64(len(input.Items))
	}
	return out, nil
}

// Score rates an evidence item in [0,1]. The result does not depend on the
// order in which signals are evaluated.
func (h *Handler) Score(item models.EvidenceItem) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("quality scoring panicked", map[string]interface{}{
				"url":   item.URLOrID,
				"panic": r,
			})
			score = FallbackScore
		}
	}()
	return h.Explain(item).Score
}

// Explain returns the per-signal adjustments behind Score.
func (h *Handler) Explain(item models.EvidenceItem) Breakdown {
	adj := h.adjustments(item)

	sum := baseHundredths
	for _, v := range adj {
		sum += v
	}
	if sum < 0 {
		sum = 0
	}
	if sum > 100 {
		sum = 100
	}

	return Breakdown{Base: baseHundredths, Adjustments: adj, Score: float64(sum) / 100}
}

func (h *Handler) adjustments(item models.EvidenceItem) map[string]int {
	adj := make(map[string]int)

	url := strings.ToLower(item.URLOrID)
	content := item.Text
	lowerContent := strings.ToLower(content)
	lowerTitle := strings.ToLower(item.Title)
	contentLen := utf8.RuneCountInString(content)
	titleLen := utf8.RuneCountInString(item.Title)

	// domain trust
	if containsAny(url, h.config.TrustedDomains) {
		adj["trusted_domain"] = 30
	}
	if containsAny(url, h.config.InstitutionalTLDs) {
		adj["institutional_domain"] = 20
	}
	if containsAny(url, h.config.CommercialDomains) {
		adj["commercial_domain"] = 10
	}

	// content
	switch {
	case contentLen > 1000:
		adj["length"] = 15
	case contentLen > 500:
		adj["length"] = 10
	case contentLen > 200:
		adj["length"] = 5
	}
	if containsAny(content, structureMarkers) {
		adj["structure"] = 10
	}
	switch n := countContained(lowerContent, technicalTerms); {
	case n >= 3:
		adj["technical_depth"] = 10
	case n >= 1:
		adj["technical_depth"] = 5
	}

	// title
	if titleLen >= 10 && titleLen <= 100 {
		adj["title_length"] = 5
	} else if titleLen < 5 {
		adj["title_length"] = -10
	}
	if containsAny(lowerTitle, titleCueWords) {
		adj["title_cue"] = 5
	}

	// penalties
	if containsAny(lowerContent, spamPhrases) {
		adj["spam"] = -30
	}
	if contentLen < 50 {
		adj["too_short"] = -20
	}
	if containsAny(content, garbledMarkers) {
		adj["garbled"] = -10
	}
	if strings.Count(content, "http") > 10 {
		adj["link_heavy"] = -10
	}

	// bonuses
	if containsAny(content, h.config.RecentYears) || containsAny(content, monthNames) {
		adj["dated"] = 5
	}
	if containsAny(lowerContent, authorshipMarkers) {
		adj["authorship"] = 5
	}
	if containsAny(lowerContent, citationMarkers) {
		adj["citations"] = 5
	}

	return adj
}

// Glyph maps a score to its traffic-light marker.
func Glyph(score float64) string {
	switch {
	case score > 0.7:
		return GlyphHigh
	case score > 0.4:
		return GlyphMedium
	default:
		return GlyphLow
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func countContained(s string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			n++
		}
	}
	return n
}
