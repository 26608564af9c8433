package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	httpclient "dialogue-engine/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPineconeIndex(t *testing.T) {
	var upserted []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pc-key", r.Header.Get("Api-Key"))
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Path {
		case "/describe_index_stats":
			_, _ = w.Write([]byte(`{"dimension":1536,"totalVectorCount":12,"namespaces":{"default":{"vectorCount":10},"":{"vectorCount":2}}}`))
		case "/query":
			assert.Equal(t, "default", body["namespace"])
			assert.Equal(t, float64(3), body["topK"])
			assert.Equal(t, true, body["includeMetadata"])
			_, _ = w.Write([]byte(`{"matches":[{"id":"a","score":0.91,"metadata":{"text":"alpha","source":"a.md","title":"A"}}]}`))
		case "/vectors/upsert":
			upserted = append(upserted, body)
			_, _ = w.Write([]byte(`{"upsertedCount":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	idx := NewPineconeIndexWithClient(srv.URL, "pc-key", httpclient.NewClientWith(srv.Client()))
	ctx := context.Background()

	stats, err := idx.DescribeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalVectorCount)
	assert.Equal(t, 1536, stats.Dimension)
	assert.Equal(t, int64(2), stats.Namespaces[""])

	matches, err := idx.Query(ctx, QueryRequest{Vector: []float32{0.1}, TopK: 3, Namespace: NamespaceDefault, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0.91, matches[0].Score)
	assert.Equal(t, "alpha", matches[0].MetaString(MetaText))
	assert.Equal(t, "", matches[0].MetaString("missing"))

	vecs := make([]Vector, 150)
	for i := range vecs {
		vecs[i] = Vector{ID: "v", Values: []float32{1}}
	}
	require.NoError(t, idx.Upsert(ctx, NamespaceDefault, vecs))
	require.Len(t, upserted, 2)
	assert.Len(t, upserted[0]["vectors"], 100)
	assert.Len(t, upserted[1]["vectors"], 50)
}

func TestPineconeIndex_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	idx := NewPineconeIndexWithClient(srv.URL, "k", httpclient.NewClientWith(srv.Client()))
	_, err := idx.DescribeStats(context.Background())
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	_, err = idx.Query(context.Background(), QueryRequest{TopK: 1})
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestNewPineconeIndex_AddsScheme(t *testing.T) {
	idx := NewPineconeIndex("my-index.svc.pinecone.io/", "k", 0)
	assert.Equal(t, "https://my-index.svc.pinecone.io", idx.host)
}
