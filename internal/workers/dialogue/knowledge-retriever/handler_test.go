// internal/workers/dialogue/knowledge-retriever/handler_test.go
package knowledgeretriever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/providers/embedding"
	"dialogue-engine/internal/providers/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type fakeIndex struct {
	mu       sync.Mutex
	stats    *vectorindex.Stats
	statsErr error
	byNS     map[string][]vectorindex.Match
	queryErr error
	queries  []vectorindex.QueryRequest
}

func (f *fakeIndex) DescribeStats(context.Context) (*vectorindex.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeIndex) Query(_ context.Context, req vectorindex.QueryRequest) ([]vectorindex.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.byNS[req.Namespace], nil
}

func (f *fakeIndex) Upsert(context.Context, string, []vectorindex.Vector) error { return nil }

type staticEmbedder struct {
	vec []float32
	err error
}

func (s *staticEmbedder) Embed(context.Context, string) ([]float32, error) { return s.vec, s.err }
func (s *staticEmbedder) Dimensions() int                                 { return len(s.vec) }
func (s *staticEmbedder) Name() string                                    { return "static" }

func match(id string, score float64) vectorindex.Match {
	return vectorindex.Match{ID: id, Score: score, Metadata: map[string]interface{}{
		vectorindex.MetaText:   "text " + id,
		vectorindex.MetaTitle:  "Doc " + id,
		vectorindex.MetaSource: id + ".md",
	}}
}

func newTestHandler(t *testing.T, idx vectorindex.Index, local embedding.Embedder) *Handler {
	return NewHandler(LoadConfig(), idx, nil, local, logger.NewTestLogger(t))
}

// ==========================
// Failure Branches
// ==========================

func TestHandler_Search_EmptyIndex(t *testing.T) {
	idx := &fakeIndex{stats: &vectorindex.Stats{TotalVectorCount: 0, Dimension: 8}}
	res := newTestHandler(t, idx, nil).Search(context.Background(), "anything", 5)

	assert.False(t, res.Success)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, apperrors.ErrCodeIndexEmpty, res.ErrorCode)
	assert.Empty(t, res.Sources)
	assert.Empty(t, idx.queries)
}

func TestHandler_Search_IndexUnavailable(t *testing.T) {
	idx := &fakeIndex{statsErr: fmt.Errorf("%w: dial tcp", vectorindex.ErrIndexUnavailable)}
	res := newTestHandler(t, idx, nil).Search(context.Background(), "anything", 5)

	assert.False(t, res.Success)
	assert.Equal(t, apperrors.ErrCodeIndexUnavailable, res.ErrorCode)
	assert.Equal(t, "The knowledge base is unavailable right now.", res.Message)
}

func TestHandler_Search_NoMatches(t *testing.T) {
	idx := &fakeIndex{stats: &vectorindex.Stats{TotalVectorCount: 3, Dimension: 8}}
	res := newTestHandler(t, idx, nil).Search(context.Background(), "anything", 4)

	assert.False(t, res.Success)
	assert.Equal(t, apperrors.ErrCodeNoMatches, res.ErrorCode)
	require.Len(t, idx.queries, 2, "root namespace is tried when default is sparse")
	assert.Equal(t, vectorindex.NamespaceDefault, idx.queries[0].Namespace)
	assert.Equal(t, vectorindex.NamespaceRoot, idx.queries[1].Namespace)
}

// ==========================
// Selection
// ==========================

func TestHandler_Search_SelectsAboveThreshold(t *testing.T) {
	idx := &fakeIndex{
		stats: &vectorindex.Stats{TotalVectorCount: 10, Dimension: 8},
		byNS: map[string][]vectorindex.Match{
			vectorindex.NamespaceDefault: {match("c", 0.73), match("a", 0.9), match("d", 0.5), match("b", 0.8)},
		},
	}
	res := newTestHandler(t, idx, nil).Search(context.Background(), "query", 4)

	require.True(t, res.Success)
	assert.InDelta(t, 0.85, res.Score, 1e-9)
	assert.Equal(t, "text a\n\ntext b", res.Context)
	assert.Equal(t, 2, res.RelevantCount)
	assert.Equal(t, 4, res.TotalFound)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, "Doc a", res.Sources[0].Title)
	assert.Equal(t, "a.md", res.Sources[0].URL)
	assert.Equal(t, 0.9, res.Sources[0].QualityScore, "similarity doubles as the source quality")
	assert.Len(t, idx.queries, 1)
}

func TestSelectRelevant_ThresholdIsExclusive(t *testing.T) {
	got := SelectRelevant([]vectorindex.Match{match("x", 0.73), match("y", 0.73), match("z", 0.73)}, 0.73, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "y", got[1].ID)

	res := build(got, 0.73)
	assert.Equal(t, 0, res.RelevantCount)
	assert.InDelta(t, 0.73, res.Score, 1e-9)
}

func TestSelectRelevant_FewerThanMinimum(t *testing.T) {
	got := SelectRelevant([]vectorindex.Match{match("only", 0.2)}, 0.73, 2)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].ID)
}

func TestMergeMatches_StableDescending(t *testing.T) {
	merged := MergeMatches(
		[]vectorindex.Match{match("d1", 0.6)},
		[]vectorindex.Match{match("r1", 0.8), match("r2", 0.6), match("r3", 0.4)},
		3,
	)
	ids := []string{merged[0].ID, merged[1].ID, merged[2].ID}
	assert.Equal(t, []string{"r1", "d1", "r2"}, ids)
}

// ==========================
// Embedding Selection
// ==========================

func TestHandler_Search_ResizesToIndexDimension(t *testing.T) {
	idx := &fakeIndex{
		stats: &vectorindex.Stats{TotalVectorCount: 2, Dimension: 8},
		byNS: map[string][]vectorindex.Match{
			vectorindex.NamespaceDefault: {match("a", 0.9), match("b", 0.88)},
		},
	}
	h := newTestHandler(t, idx, &staticEmbedder{vec: []float32{1, 2, 3}})

	res := h.Search(context.Background(), "query", 2)
	require.True(t, res.Success)
	assert.Equal(t, "static", res.Embedder)
	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3, 1, 2}, idx.queries[0].Vector)

	idx.stats = &vectorindex.Stats{TotalVectorCount: 2, Dimension: 4}
	h.Search(context.Background(), "query", 2)
	assert.Len(t, idx.queries[1].Vector, 8, "dimension is detected once")
}

func TestHandler_Search_FallsBackToHashEmbedder(t *testing.T) {
	idx := &fakeIndex{
		stats: &vectorindex.Stats{TotalVectorCount: 2, Dimension: 16},
		byNS: map[string][]vectorindex.Match{
			vectorindex.NamespaceDefault: {match("a", 0.9)},
		},
	}
	h := newTestHandler(t, idx, &staticEmbedder{err: fmt.Errorf("ollama down")})

	res := h.Search(context.Background(), "query", 2)
	require.True(t, res.Success)
	assert.Equal(t, "hash", res.Embedder)
	assert.Len(t, idx.queries[0].Vector, 16)
}

func TestHandler_Search_UsesOpenAIModelForDimension(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	openai, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	idx := &fakeIndex{
		stats: &vectorindex.Stats{TotalVectorCount: 1, Dimension: 3072},
		byNS:  map[string][]vectorindex.Match{vectorindex.NamespaceDefault: {match("a", 0.95)}},
	}
	h := NewHandler(LoadConfig(), idx, openai, nil, logger.NewTestLogger(t))

	res := h.Search(context.Background(), "query", 1)
	require.True(t, res.Success)
	assert.Equal(t, embedding.Model3Large, model)
	assert.Len(t, idx.queries[0].Vector, 3072)
}

func TestFormatResults(t *testing.T) {
	res := build([]vectorindex.Match{match("a", 0.9), match("b", 0.5)}, 0.73)
	res.Message = "Found 2 documents, 1 relevant"

	out := FormatResults(res, 0.73)
	assert.Contains(t, out, "✅ **#1 - Doc a** (90.0%)")
	assert.Contains(t, out, "⚠️ **#2 - Doc b** (50.0%)")
	assert.Contains(t, out, "🏷️ Source: a.md")
	assert.Equal(t, "🔍 No knowledge base results", FormatResults(&RetrievalResult{}, 0.73))
}
