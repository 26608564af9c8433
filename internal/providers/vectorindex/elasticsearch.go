package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"dialogue-engine/internal/common/database"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	fieldEmbedding = "embedding"
	fieldNamespace = "namespace"
)

// ElasticsearchIndex stores passages as dense_vector documents and queries them
// with approximate kNN. Scores are reported as cosine similarity.
type ElasticsearchIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchIndex(client *elasticsearch.Client, index string) *ElasticsearchIndex {
	return &ElasticsearchIndex{client: client, index: index}
}

// Mapping is the index body used by EnsureIndex for a given dimension.
func Mapping(dims int) map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				fieldEmbedding: map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
				fieldNamespace: map[string]interface{}{"type": "keyword"},
				MetaText:       map[string]interface{}{"type": "text"},
				MetaSource:     map[string]interface{}{"type": "keyword"},
				MetaTitle:      map[string]interface{}{"type": "text"},
			},
		},
	}
}

// EnsureIndex creates the backing index for the given dimension if missing.
func (e *ElasticsearchIndex) EnsureIndex(ctx context.Context, dims int) error {
	wrapped := &database.ElasticsearchClient{Client: e.client}
	return wrapped.EnsureIndex(ctx, e.index, Mapping(dims))
}

func (e *ElasticsearchIndex) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	k := req.TopK
	if k <= 0 {
		k = 5
	}
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          fieldEmbedding,
			"query_vector":   req.Vector,
			"k":              k,
			"num_candidates": k * 10,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{fieldNamespace: req.Namespace},
			},
		},
		"size": k,
	}
	if !req.IncludeMetadata {
		query["_source"] = false
	} else {
		query["_source"] = []string{MetaText, MetaSource, MetaTitle}
	}

	body, _ := json.Marshal(query)
	res, err := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, readError(res.Body, res.Status()))
	}

	var out struct {
		Hits struct {
			Hits []struct {
				ID     string                 `json:"_id"`
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrQueryFailed, err)
	}

	matches := make([]Match, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		m := Match{ID: h.ID, Score: cosineFromScore(h.Score)}
		if req.IncludeMetadata {
			m.Metadata = h.Source
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// cosineFromScore undoes the (1 + cosine) / 2 scaling applied by Elasticsearch.
func cosineFromScore(score float64) float64 {
	return 2*score - 1
}

func (e *ElasticsearchIndex) DescribeStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Namespaces: map[string]int64{}}

	mres, err := esapi.IndicesGetMappingRequest{Index: []string{e.index}}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer mres.Body.Close()
	if mres.StatusCode == 404 {
		return stats, nil
	}
	if mres.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, readError(mres.Body, mres.Status()))
	}

	var mapping map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Dims int `json:"dims"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(mres.Body).Decode(&mapping); err != nil {
		return nil, fmt.Errorf("%w: decode mapping: %v", ErrIndexUnavailable, err)
	}
	for _, m := range mapping {
		stats.Dimension = m.Mappings.Properties[fieldEmbedding].Dims
	}

	aggBody, _ := json.Marshal(map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			"namespaces": map[string]interface{}{
				"terms": map[string]interface{}{"field": fieldNamespace, "size": 100},
			},
		},
	})
	sres, err := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(aggBody),
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer sres.Body.Close()
	if sres.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, readError(sres.Body, sres.Status()))
	}

	var agg struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Namespaces struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"namespaces"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(sres.Body).Decode(&agg); err != nil {
		return nil, fmt.Errorf("%w: decode stats: %v", ErrIndexUnavailable, err)
	}

	stats.TotalVectorCount = agg.Hits.Total.Value
	for _, b := range agg.Aggregations.Namespaces.Buckets {
		stats.Namespaces[b.Key] = b.DocCount
	}
	return stats, nil
}

// Upsert indexes vectors through the bulk API, ids as document ids.
func (e *ElasticsearchIndex) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, v := range vectors {
		doc := map[string]interface{}{
			fieldEmbedding: v.Values,
			fieldNamespace: namespace,
		}
		for k, val := range v.Metadata {
			doc[k] = val
		}
		if err := enc.Encode(map[string]interface{}{"index": map[string]interface{}{"_index": e.index, "_id": v.ID}}); err != nil {
			return fmt.Errorf("%w: %v", ErrUpsertFailed, err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("%w: %v", ErrUpsertFailed, err)
		}
	}

	res, err := esapi.BulkRequest{
		Body:    &buf,
		Refresh: "true",
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpsertFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrUpsertFailed, readError(res.Body, res.Status()))
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err == nil && out.Errors {
		return fmt.Errorf("%w: bulk response reported item errors", ErrUpsertFailed)
	}
	return nil
}

func readError(body io.Reader, status string) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	if len(raw) == 0 {
		return status
	}
	return status + ": " + strings.TrimSpace(string(raw))
}
