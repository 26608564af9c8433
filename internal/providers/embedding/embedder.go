// Package embedding turns text into vectors for the knowledge index.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/common/metrics"
)

var ErrEmbeddingFailed = errors.New("EMBEDDING_FAILED")

// Embedder generates text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the native output size, 0 when unknown until the first call.
	Dimensions() int
	Name() string
}

// Chain tries each embedder in order and returns the first success.
type Chain struct {
	embedders []Embedder
	logger    logger.Logger
}

func NewChain(log logger.Logger, embedders ...Embedder) *Chain {
	return &Chain{embedders: embedders, logger: log}
}

// Embed returns the vector and the name of the embedder that produced it.
func (c *Chain) Embed(ctx context.Context, text string) ([]float32, string, error) {
	var errs []error
	for i, e := range c.embedders {
		vec, err := e.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			if i > 0 {
				metrics.EmbeddingFallbacks.WithLabelValues(e.Name()).Inc()
				c.logger.Warn("embedding served by fallback provider", map[string]interface{}{
					"provider": e.Name(),
					"position": i,
				})
			}
			return vec, e.Name(), nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned an empty vector", e.Name())
		}
		c.logger.Warn("embedding provider failed", map[string]interface{}{
			"provider": e.Name(),
			"error":    err.Error(),
		})
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", fmt.Errorf("%w: %v", ErrEmbeddingFailed, errors.Join(errs...))
}

// Resize fits a vector to dim: longer vectors are truncated, shorter ones are
// repeated cyclically and then truncated.
func Resize(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) == 0 {
		return vec
	}
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	if len(vec) > dim {
		copy(out, vec[:dim])
		return out
	}
	for i := range out {
		out[i] = vec[i%len(vec)]
	}
	return out
}
