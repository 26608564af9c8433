package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	httpclient "dialogue-engine/internal/common/http"

	"github.com/patrickmn/go-cache"
)

type GoogleConfig struct {
	BaseURL  string
	APIKey   string
	EngineID string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// GoogleSearcher queries the Custom Search JSON API. Identical queries within
// CacheTTL are answered from memory.
type GoogleSearcher struct {
	config GoogleConfig
	client *httpclient.Client
	cache  *cache.Cache
}

func NewGoogleSearcher(config GoogleConfig) *GoogleSearcher {
	return NewGoogleSearcherWithClient(config, httpclient.NewClient(config.Timeout))
}

func NewGoogleSearcherWithClient(config GoogleConfig, client *httpclient.Client) *GoogleSearcher {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &GoogleSearcher{
		config: config,
		client: client,
		cache:  cache.New(ttl, 10*time.Minute),
	}
}

type googleResponse struct {
	Items             []Result `json:"items"`
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
}

func (g *GoogleSearcher) Search(ctx context.Context, req Request) (*Response, error) {
	if req.Count <= 0 {
		req.Count = 3
	}
	// The API rejects num above 10.
	if req.Count > 10 {
		req.Count = 10
	}

	key := fmt.Sprintf("%s|%s|%d", req.Locale, req.Query, req.Count)
	if g.config.CacheTTL > 0 {
		if cached, found := g.cache.Get(key); found {
			return cached.(*Response), nil
		}
	}

	params := url.Values{}
	params.Set("key", g.config.APIKey)
	params.Set("cx", g.config.EngineID)
	params.Set("q", req.Query)
	params.Set("num", strconv.Itoa(req.Count))
	if req.Locale != "" {
		params.Set("hl", req.Locale)
	}

	var out googleResponse
	if err := g.client.DoJSON(ctx, http.MethodGet, g.config.BaseURL+"?"+params.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	resp := &Response{
		Results:      out.Items,
		TotalResults: out.SearchInformation.TotalResults,
	}
	if g.config.CacheTTL > 0 {
		g.cache.SetDefault(key, resp)
	}
	return resp, nil
}
