// Package websearch runs web queries and fetches result pages as plain text.
package websearch

import (
	"context"
	"errors"
)

var (
	ErrSearchFailed = errors.New("WEB_SEARCH_FAILED")
	ErrFetchFailed  = errors.New("WEB_FETCH_FAILED")
)

type Request struct {
	Query  string
	Locale string
	Count  int
}

type Result struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

type Response struct {
	Results      []Result
	TotalResults string
}

// Searcher runs one web query.
type Searcher interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// Page is the readable content of one fetched URL.
type Page struct {
	Title     string
	Text      string
	WordCount int
}

// Fetcher downloads a page and extracts its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
