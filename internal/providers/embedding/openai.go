package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpclient "dialogue-engine/internal/common/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	ModelAda002  = "text-embedding-ada-002"
	Model3Large  = "text-embedding-3-large"
	Model3Small  = "text-embedding-3-small"
	defaultCache = 10000
)

var modelDimensions = map[string]int{
	ModelAda002: 1536,
	Model3Small: 1536,
	Model3Large: 3072,
}

type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	CacheSize int
}

// OpenAIEmbedder calls POST {base}/embeddings. Embedders derived with
// WithModel share one cache and one in-flight group.
type OpenAIEmbedder struct {
	config OpenAIConfig
	client *httpclient.Client
	cache  *lru.Cache[string, []float32]
	group  *singleflight.Group
}

func NewOpenAIEmbedder(config OpenAIConfig) (*OpenAIEmbedder, error) {
	return NewOpenAIEmbedderWithClient(config, httpclient.NewClient(config.Timeout))
}

func NewOpenAIEmbedderWithClient(config OpenAIConfig, client *httpclient.Client) (*OpenAIEmbedder, error) {
	if config.Model == "" {
		config.Model = ModelAda002
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.CacheSize <= 0 {
		config.CacheSize = defaultCache
	}

	cache, err := lru.New[string, []float32](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &OpenAIEmbedder{
		config: config,
		client: client.WithHeader("Authorization", "Bearer "+config.APIKey),
		cache:  cache,
		group:  &singleflight.Group{},
	}, nil
}

// WithModel returns an embedder for another model sharing this one's cache.
func (e *OpenAIEmbedder) WithModel(model string) *OpenAIEmbedder {
	cfg := e.config
	cfg.Model = model
	return &OpenAIEmbedder{config: cfg, client: e.client, cache: e.cache, group: e.group}
}

func (e *OpenAIEmbedder) Name() string { return "openai:" + e.config.Model }

func (e *OpenAIEmbedder) Dimensions() int { return modelDimensions[e.config.Model] }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.config.Model + "\x00" + text
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		vec, err := e.callAPI(ctx, text)
		if err != nil {
			return nil, err
		}
		e.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (e *OpenAIEmbedder) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model": e.config.Model,
		"input": text,
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	url := strings.TrimRight(e.config.BaseURL, "/") + "/embeddings"
	if err := e.client.DoJSON(ctx, http.MethodPost, url, reqBody, &out); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty data")
	}
	return out.Data[0].Embedding, nil
}
