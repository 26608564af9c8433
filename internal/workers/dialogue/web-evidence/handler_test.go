// internal/workers/dialogue/web-evidence/handler_test.go
package webevidence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/providers/websearch"
	qualityscorer "dialogue-engine/internal/workers/dialogue/quality-scorer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, req websearch.Request) (*websearch.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*websearch.Response), args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*websearch.Page, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*websearch.Page), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, s *MockSearcher, f *MockFetcher) (*Handler, *[]time.Duration) {
	log := logger.NewTestLogger(t)
	var sleeps []time.Duration
	h := NewHandler(LoadConfig(), s, f, qualityscorer.NewHandler(qualityscorer.LoadConfig(), log), log).
		WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return ctx.Err()
		})
	return h, &sleeps
}

func results(n int) []websearch.Result {
	out := make([]websearch.Result, n)
	for i := range out {
		out[i] = websearch.Result{
			Title:   fmt.Sprintf("Result %d title", i+1),
			Link:    fmt.Sprintf("https://example.com/%d", i+1),
			Snippet: fmt.Sprintf("snippet %d", i+1),
		}
	}
	return out
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Gather_FetchesSequentiallyWithDelay(t *testing.T) {
	s := new(MockSearcher)
	f := new(MockFetcher)
	h, sleeps := createTestHandler(t, s, f)

	s.On("Search", mock.Anything, websearch.Request{Query: "golang generics", Locale: "uk", Count: 3}).
		Return(&websearch.Response{Results: results(5), TotalResults: "120"}, nil)
	long := strings.Repeat("Generics were added in Go 1.18. ", 10)
	f.On("Fetch", mock.Anything, "https://example.com/1").Return(&websearch.Page{Title: "p1", Text: long, WordCount: 60}, nil)
	f.On("Fetch", mock.Anything, "https://example.com/2").Return(nil, fmt.Errorf("%w: 403", websearch.ErrFetchFailed))
	f.On("Fetch", mock.Anything, "https://example.com/3").Return(&websearch.Page{Title: "p3", Text: "too short", WordCount: 2}, nil)

	res := h.Gather(context.Background(), "golang generics", 3)

	require.True(t, res.Success)
	assert.Equal(t, "120", res.TotalResults)
	require.Len(t, res.Items, 3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, *sleeps)

	assert.Equal(t, 1, res.Items[0].Rank)
	assert.Equal(t, "Result 1 title", res.Items[0].Title)
	assert.True(t, res.Items[0].Success)
	assert.Greater(t, res.Items[0].QualityScore, 0.0)

	assert.False(t, res.Items[1].Success)
	assert.Equal(t, "snippet 2", res.Items[1].Text, "snippet replaces failed fetch")
	assert.Equal(t, 2, res.Items[1].WordCount)

	valid := res.Valid()
	require.Len(t, valid, 1)
	assert.Equal(t, "https://example.com/1", valid[0].URLOrID)
	f.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestHandler_Gather_ZeroHitsIsSuccess(t *testing.T) {
	s := new(MockSearcher)
	f := new(MockFetcher)
	h, _ := createTestHandler(t, s, f)

	s.On("Search", mock.Anything, mock.Anything).Return(&websearch.Response{}, nil)

	res := h.Gather(context.Background(), "nothing", 3)
	assert.True(t, res.Success)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Valid())
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestHandler_Gather_SearchFailure(t *testing.T) {
	s := new(MockSearcher)
	f := new(MockFetcher)
	h, _ := createTestHandler(t, s, f)

	s.On("Search", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: status 500", websearch.ErrSearchFailed))

	res := h.Gather(context.Background(), "q", 3)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.ErrCodeWebSearchFailed, res.ErrorCode)
	assert.Equal(t, "Web search failed.", res.Message)
}

func TestHandler_Gather_CancelledBetweenFetches(t *testing.T) {
	s := new(MockSearcher)
	f := new(MockFetcher)
	h, _ := createTestHandler(t, s, f)

	ctx, cancel := context.WithCancel(context.Background())
	s.On("Search", mock.Anything, mock.Anything).Return(&websearch.Response{Results: results(3)}, nil)
	f.On("Fetch", mock.Anything, "https://example.com/1").
		Run(func(mock.Arguments) { cancel() }).
		Return(&websearch.Page{Text: strings.Repeat("a", 80)}, nil)

	res := h.Gather(ctx, "q", 3)
	assert.True(t, res.Success, "fetched pages are kept")
	assert.Empty(t, res.ErrorCode)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "https://example.com/1", res.Items[0].URLOrID)
	f.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestHandler_Gather_DefaultsCount(t *testing.T) {
	s := new(MockSearcher)
	f := new(MockFetcher)
	h, _ := createTestHandler(t, s, f)

	s.On("Search", mock.Anything, websearch.Request{Query: "q", Locale: "uk", Count: 3}).Return(&websearch.Response{}, nil)

	out, err := h.Execute(context.Background(), &Input{Query: "q"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	s.AssertExpectations(t)
}
