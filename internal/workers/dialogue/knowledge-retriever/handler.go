// internal/workers/dialogue/knowledge-retriever/handler.go
package knowledgeretriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/metrics"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/providers/embedding"
	"dialogue-engine/internal/providers/vectorindex"
)

const (
	TaskType = "knowledge-retriever"
)

var (
	ErrIndexEmpty = errors.New("INDEX_EMPTY")
	ErrNoMatches  = errors.New("NO_MATCHES")
)

type Handler struct {
	config *Config
	index  vectorindex.Index
	openai *embedding.OpenAIEmbedder
	local  embedding.Embedder
	logger logger.Logger

	mu    sync.Mutex
	dim   int
	chain *embedding.Chain
}

// NewHandler wires the retriever. openai and local may be nil; the hashing
// embedder is always available as the last resort.
func NewHandler(config *Config, index vectorindex.Index, openai *embedding.OpenAIEmbedder, local embedding.Embedder, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		index:  index,
		openai: openai,
		local:  local,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*RetrievalResult, error) {
	return h.Search(ctx, input.Query, input.TopK), nil
}

// Search embeds the query and selects the relevant passages. It never returns
// an error; failures are described in the result.
func (h *Handler) Search(ctx context.Context, query string, topK int) *RetrievalResult {
	if topK <= 0 {
		topK = h.config.TopK
	}
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	stats, err := h.index.DescribeStats(ctx)
	if err != nil {
		return h.fail(apperrors.ErrCodeIndexUnavailable, err)
	}
	if stats.TotalVectorCount == 0 {
		return h.fail(apperrors.ErrCodeIndexEmpty, ErrIndexEmpty)
	}

	chain, dim := h.EmbedderFor(stats.Dimension)
	vec, embedder, err := chain.Embed(ctx, query)
	if err != nil {
		return h.fail(apperrors.ErrCodeEmbeddingFailed, err)
	}
	vec = embedding.Resize(vec, dim)

	matches, err := h.index.Query(ctx, vectorindex.QueryRequest{
		Vector: vec, TopK: topK, Namespace: vectorindex.NamespaceDefault, IncludeMetadata: true,
	})
	if err != nil {
		return h.fail(apperrors.ErrCodeIndexUnavailable, err)
	}

	if len(matches) < topK/2 {
		extra, err := h.index.Query(ctx, vectorindex.QueryRequest{
			Vector: vec, TopK: topK, Namespace: vectorindex.NamespaceRoot, IncludeMetadata: true,
		})
		if err != nil {
			h.logger.Warn("root namespace query failed", map[string]interface{}{"error": err.Error()})
		} else {
			matches = MergeMatches(matches, extra, topK)
		}
	}

	if len(matches) == 0 {
		return h.fail(apperrors.ErrCodeNoMatches, ErrNoMatches)
	}

	selected := SelectRelevant(matches, h.config.RelevanceThreshold, h.config.MinSelected)
	result := build(selected, h.config.RelevanceThreshold)
	result.TotalFound = len(matches)
	result.Embedder = embedder
	result.Message = fmt.Sprintf("Found %d documents, %d relevant", len(matches), result.RelevantCount)

	metrics.RetrievalScore.Observe(result.Score)
	h.logger.Info("knowledge retrieved", map[string]interface{}{
		"totalFound": result.TotalFound,
		"selected":   len(selected),
		"score":      result.Score,
		"embedder":   embedder,
	})
	return result
}

// EmbedderFor returns the embedding chain for the index dimension, detected
// once and cached.
func (h *Handler) EmbedderFor(statsDim int) (*embedding.Chain, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.chain != nil {
		return h.chain, h.dim
	}

	var chain []embedding.Embedder
	model := ""
	switch statsDim {
	case 1536:
		model = embedding.ModelAda002
	case 3072:
		model = embedding.Model3Large
	}
	if model != "" && h.openai != nil {
		chain = append(chain, h.openai.WithModel(model))
	}
	if h.local != nil {
		chain = append(chain, h.local)
	}
	chain = append(chain, embedding.NewHashEmbedder(statsDim))

	c := embedding.NewChain(h.logger, chain...)
	if statsDim <= 0 {
		// unknown dimension; do not cache
		return c, 0
	}

	h.logger.Info("embedding model selected", map[string]interface{}{
		"dimension": statsDim,
		"model":     chain[0].Name(),
	})
	h.dim = statsDim
	h.chain = c
	return c, statsDim
}

func (h *Handler) fail(code apperrors.ErrorCode, err error) *RetrievalResult {
	if apperrors.GetKind(code) == apperrors.KindNotFound {
		h.logger.Info("knowledge retrieval found nothing", map[string]interface{}{"errorCode": string(code)})
	} else {
		h.logger.Error("knowledge retrieval failed", map[string]interface{}{
			"errorCode": string(code),
			"error":     err.Error(),
		})
		metrics.StageFailures.WithLabelValues(TaskType, string(code)).Inc()
	}
	return &RetrievalResult{
		Success:   false,
		Score:     0,
		Message:   apperrors.UserMessage(code),
		ErrorCode: code,
	}
}

// MergeMatches concatenates both lists, sorts them by descending score with
// ties keeping their original order, and truncates to topK.
func MergeMatches(first, second []vectorindex.Match, topK int) []vectorindex.Match {
	all := make([]vectorindex.Match, 0, len(first)+len(second))
	all = append(all, first...)
	all = append(all, second...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	return all
}

// SelectRelevant keeps matches scoring above threshold. When fewer than min
// qualify, the top min matches are taken regardless of score.
func SelectRelevant(matches []vectorindex.Match, threshold float64, min int) []vectorindex.Match {
	sorted := make([]vectorindex.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var relevant []vectorindex.Match
	for _, m := range sorted {
		if m.Score > threshold {
			relevant = append(relevant, m)
		}
	}
	if len(relevant) < min {
		if min > len(sorted) {
			min = len(sorted)
		}
		relevant = sorted[:min]
	}
	return relevant
}

func build(selected []vectorindex.Match, threshold float64) *RetrievalResult {
	res := &RetrievalResult{Success: len(selected) > 0}

	texts := make([]string, 0, len(selected))
	total := 0.0
	for i, m := range selected {
		text := m.MetaString(vectorindex.MetaText)
		title := m.MetaString(vectorindex.MetaTitle)
		if title == "" {
			title = "Untitled"
		}
		source := m.MetaString(vectorindex.MetaSource)
		if source == "" {
			source = m.ID
		}

		texts = append(texts, text)
		total += m.Score
		if m.Score > threshold {
			res.RelevantCount++
		}

		res.Sources = append(res.Sources, models.SourceRef{Title: title, URL: source, QualityScore: m.Score})
		res.Items = append(res.Items, models.EvidenceItem{
			Title:        title,
			URLOrID:      m.ID,
			Text:         text,
			RawScore:     m.Score,
			QualityScore: m.Score,
			Rank:         i + 1,
			Success:      true,
			WordCount:    len(strings.Fields(text)),
		})
	}

	res.Context = strings.Join(texts, "\n\n")
	if len(selected) > 0 {
		res.Score = total / float64(len(selected))
	}
	return res
}

const previewChars = 150

// FormatResults renders a retrieval result for terminal display.
func FormatResults(res *RetrievalResult, threshold float64) string {
	if res == nil || len(res.Items) == 0 {
		return "🔍 No knowledge base results"
	}

	var b strings.Builder
	b.WriteString("🔍 **Knowledge base results:**\n")
	fmt.Fprintf(&b, "📊 %s\n\n", res.Message)
	for i, it := range res.Items {
		icon := "⚠️"
		if it.RawScore > threshold {
			icon = "✅"
		}
		preview := it.Text
		if utf8.RuneCountInString(preview) > previewChars {
			preview = string([]rune(preview)[:previewChars]) + "..."
		}
		source := it.URLOrID
		if i < len(res.Sources) {
			source = res.Sources[i].URL
		}
		fmt.Fprintf(&b, "%s **#%d - %s** (%.1f%%)\n", icon, it.Rank, it.Title, it.RawScore*100)
		fmt.Fprintf(&b, "📄 %s\n", preview)
		fmt.Fprintf(&b, "🏷️ Source: %s\n\n", source)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Stats reports the index size for status displays.
func (h *Handler) Stats(ctx context.Context) (*vectorindex.Stats, error) {
	stats, err := h.index.DescribeStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vectorindex.ErrIndexUnavailable, err)
	}
	return stats, nil
}
