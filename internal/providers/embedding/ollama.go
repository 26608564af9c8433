package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	httpclient "dialogue-engine/internal/common/http"
)

// OllamaEmbedder calls a local Ollama server at POST {base}/api/embeddings.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *httpclient.Client
	dims    atomic.Int64
}

func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) *OllamaEmbedder {
	return NewOllamaEmbedderWithClient(baseURL, model, httpclient.NewClient(timeout))
}

func NewOllamaEmbedderWithClient(baseURL, model string, client *httpclient.Client) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{baseURL: strings.TrimRight(baseURL, "/"), model: model, client: client}
}

func (o *OllamaEmbedder) Name() string { return "ollama:" + o.model }

// Dimensions is learned from the first successful response.
func (o *OllamaEmbedder) Dimensions() int { return int(o.dims.Load()) }

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	body := map[string]string{"model": o.model, "prompt": text}
	if err := o.client.DoJSON(ctx, http.MethodPost, o.baseURL+"/api/embeddings", body, &out); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embeddings: empty vector")
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	o.dims.Store(int64(len(vec)))
	return vec, nil
}
