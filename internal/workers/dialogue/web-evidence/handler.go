// internal/workers/dialogue/web-evidence/handler.go
package webevidence

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/metrics"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/providers/websearch"
	qualityscorer "dialogue-engine/internal/workers/dialogue/quality-scorer"
)

const (
	TaskType = "web-evidence"
)

type Handler struct {
	config   *Config
	searcher websearch.Searcher
	fetcher  websearch.Fetcher
	scorer   *qualityscorer.Handler
	logger   logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewHandler(config *Config, searcher websearch.Searcher, fetcher websearch.Fetcher, scorer *qualityscorer.Handler, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		searcher: searcher,
		fetcher:  fetcher,
		scorer:   scorer,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		sleep:    sleepContext,
	}
}

// WithSleep replaces the politeness delay, for tests.
func (h *Handler) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Handler {
	h.sleep = sleep
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*GatherResult, error) {
	return h.Gather(ctx, input.Query, input.Count), nil
}

// Gather runs one search and fetches up to n result pages one after another.
// Failures are reported in the result, never as an error.
func (h *Handler) Gather(ctx context.Context, query string, n int) *GatherResult {
	if n <= 0 {
		n = h.config.Count
	}
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	result := &GatherResult{Query: query}

	resp, err := h.searcher.Search(ctx, websearch.Request{Query: query, Locale: h.config.Locale, Count: n})
	if err != nil {
		return h.fail(ctx, result, err)
	}
	result.TotalResults = resp.TotalResults

	hits := resp.Results
	if len(hits) > n {
		hits = hits[:n]
	}

	for i, hit := range hits {
		if i > 0 {
			if err := h.sleep(ctx, h.config.FetchDelay); err != nil {
				h.logger.Warn("web evidence cut short, keeping fetched pages", map[string]interface{}{
					"query": query,
					"items": len(result.Items),
					"error": err.Error(),
				})
				break
			}
		}
		result.Items = append(result.Items, h.collect(ctx, hit, i+1))
	}

	result.Success = true
	h.logger.Info("web evidence gathered", map[string]interface{}{
		"query":      query,
		"items":      len(result.Items),
		"validItems": len(result.Valid()),
	})
	return result
}

func (h *Handler) collect(ctx context.Context, hit websearch.Result, rank int) models.EvidenceItem {
	item := models.EvidenceItem{
		Title:   hit.Title,
		URLOrID: hit.Link,
		Snippet: hit.Snippet,
		Rank:    rank,
	}

	page, err := h.fetcher.Fetch(ctx, hit.Link)
	if err != nil {
		metrics.WebFetches.WithLabelValues("failed").Inc()
		h.logger.Warn("page fetch failed, using snippet", map[string]interface{}{
			"url":   hit.Link,
			"error": err.Error(),
		})
		item.Text = hit.Snippet
		item.WordCount = len(strings.Fields(hit.Snippet))
	} else {
		metrics.WebFetches.WithLabelValues("ok").Inc()
		item.Success = true
		item.Text = page.Text
		item.WordCount = page.WordCount
		if item.Title == "" {
			item.Title = page.Title
		}
	}

	item.QualityScore = h.scorer.Score(item)
	return item
}

func (h *Handler) fail(ctx context.Context, result *GatherResult, err error) *GatherResult {
	code := apperrors.ErrCodeWebSearchFailed
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		code = apperrors.ErrCodeWebSearchTimeout
	}

	h.logger.Error("web search failed", map[string]interface{}{
		"query":     result.Query,
		"errorCode": string(code),
		"error":     err.Error(),
	})
	metrics.StageFailures.WithLabelValues(TaskType, string(code)).Inc()

	result.Success = false
	result.ErrorCode = code
	result.Message = apperrors.UserMessage(code)
	return result
}
