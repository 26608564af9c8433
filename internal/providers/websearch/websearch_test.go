package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	httpclient "dialogue-engine/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleSearcher_SearchAndCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		assert.Equal(t, "gkey", q.Get("key"))
		assert.Equal(t, "engine", q.Get("cx"))
		assert.Equal(t, "golang", q.Get("q"))
		assert.Equal(t, "3", q.Get("num"))
		assert.Equal(t, "uk", q.Get("hl"))
		_, _ = w.Write([]byte(`{"items":[{"title":"Go","link":"https://go.dev","snippet":"The Go language","displayLink":"go.dev"}],"searchInformation":{"totalResults":"1"}}`))
	}))
	defer srv.Close()

	g := NewGoogleSearcherWithClient(GoogleConfig{
		BaseURL: srv.URL, APIKey: "gkey", EngineID: "engine", CacheTTL: time.Minute,
	}, httpclient.NewClientWith(srv.Client()))

	req := Request{Query: "golang", Locale: "uk", Count: 3}
	resp, err := g.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://go.dev", resp.Results[0].Link)

	_, err = g.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGoogleSearcher_NoItemsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()

	g := NewGoogleSearcherWithClient(GoogleConfig{BaseURL: srv.URL}, httpclient.NewClientWith(srv.Client()))
	resp, err := g.Search(context.Background(), Request{Query: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestGoogleSearcher_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGoogleSearcherWithClient(GoogleConfig{BaseURL: srv.URL}, httpclient.NewClientWith(srv.Client()))
	_, err := g.Search(context.Background(), Request{Query: "x"})
	assert.ErrorIs(t, err, ErrSearchFailed)
}

func TestExtractText_RemovesChromeAndCollapsesWhitespace(t *testing.T) {
	html := `<html><head><title> Guide </title><style>.x{}</style></head>
<body><header>Site header</header><nav>Menu</nav>
<h1>How   it
works</h1>
<script>alert(1)</script>
<p>Body   text.</p>
<footer>Copyright</footer></body></html>`

	title, text, err := ExtractText([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, "Guide", title)
	assert.Equal(t, "How it works Body text.", text)
}

func TestExtractText_CapsLength(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("я", MaxTextChars+10) + "</p></body></html>"
	_, text, err := ExtractText([]byte(html))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(text, "..."))
	assert.Equal(t, MaxTextChars+3, utf8.RuneCountInString(text))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><head><title>T</title></head><body><p>one two three</p></body></html>"))
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcherWithClient(httpclient.NewClientWith(srv.Client()))

	page, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "T", page.Title)
	assert.Equal(t, 3, page.WordCount)

	_, err = f.Fetch(context.Background(), srv.URL+"/pdf")
	assert.ErrorIs(t, err, ErrFetchFailed)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrFetchFailed)
}
