package vectorindex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpclient "dialogue-engine/internal/common/http"
)

// PineconeIndex talks to a Pinecone index host over its data-plane REST API.
type PineconeIndex struct {
	host   string
	client *httpclient.Client
}

func NewPineconeIndex(host, apiKey string, timeout time.Duration) *PineconeIndex {
	return NewPineconeIndexWithClient(host, apiKey, httpclient.NewClient(timeout))
}

func NewPineconeIndexWithClient(host, apiKey string, client *httpclient.Client) *PineconeIndex {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return &PineconeIndex{
		host:   strings.TrimRight(host, "/"),
		client: client.WithHeader("Api-Key", apiKey),
	}
}

func (p *PineconeIndex) DescribeStats(ctx context.Context) (*Stats, error) {
	var out struct {
		Dimension        int   `json:"dimension"`
		TotalVectorCount int64 `json:"totalVectorCount"`
		Namespaces       map[string]struct {
			VectorCount int64 `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := p.client.DoJSON(ctx, http.MethodPost, p.host+"/describe_index_stats", map[string]interface{}{}, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	stats := &Stats{
		TotalVectorCount: out.TotalVectorCount,
		Dimension:        out.Dimension,
		Namespaces:       make(map[string]int64, len(out.Namespaces)),
	}
	for ns, info := range out.Namespaces {
		stats.Namespaces[ns] = info.VectorCount
	}
	return stats, nil
}

func (p *PineconeIndex) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	body := map[string]interface{}{
		"vector":          req.Vector,
		"topK":            req.TopK,
		"includeMetadata": req.IncludeMetadata,
		"namespace":       req.Namespace,
	}

	var out struct {
		Matches []Match `json:"matches"`
	}
	if err := p.client.DoJSON(ctx, http.MethodPost, p.host+"/query", body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return out.Matches, nil
}

// Upsert writes vectors in batches of 100.
func (p *PineconeIndex) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	const batch = 100
	for start := 0; start < len(vectors); start += batch {
		end := start + batch
		if end > len(vectors) {
			end = len(vectors)
		}
		body := map[string]interface{}{
			"vectors":   vectors[start:end],
			"namespace": namespace,
		}
		if err := p.client.DoJSON(ctx, http.MethodPost, p.host+"/vectors/upsert", body, nil); err != nil {
			return fmt.Errorf("%w: %v", ErrUpsertFailed, err)
		}
	}
	return nil
}
