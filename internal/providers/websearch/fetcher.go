package websearch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	httpclient "dialogue-engine/internal/common/http"

	"github.com/PuerkitoBio/goquery"
)

// MaxTextChars caps extracted page text; longer text gets a "..." suffix.
const MaxTextChars = 3000

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// HTTPFetcher downloads pages with browser-like headers.
type HTTPFetcher struct {
	client *httpclient.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return NewHTTPFetcherWithClient(httpclient.NewClient(timeout))
}

func NewHTTPFetcherWithClient(client *httpclient.Client) *HTTPFetcher {
	return &HTTPFetcher{
		client: client.
			WithHeader("User-Agent", userAgent).
			WithHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
			WithHeader("Accept-Language", "uk-UA,uk;q=0.8,en-US;q=0.5,en;q=0.3"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	body, contentType, err := f.client.GetBody(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if contentType != "" && !strings.Contains(contentType, "html") && !strings.HasPrefix(contentType, "text/") {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrFetchFailed, contentType)
	}

	title, text, err := ExtractText(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return &Page{Title: title, Text: text, WordCount: len(strings.Fields(text))}, nil
}

// ExtractText strips page chrome and returns the title and whitespace-collapsed
// body text, capped at MaxTextChars characters.
func ExtractText(html []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, nav, footer, header, noscript").Remove()

	var raw string
	if body := doc.Find("body"); body.Length() > 0 {
		raw = body.Text()
	} else {
		raw = doc.Text()
	}

	return title, Truncate(strings.Join(strings.Fields(raw), " "), MaxTextChars), nil
}

// Truncate cuts s to max characters and appends "..." when it was longer.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
