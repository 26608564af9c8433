// Package vectorindex stores and queries embedded knowledge passages.
package vectorindex

import (
	"context"
	"errors"
)

var (
	ErrIndexUnavailable = errors.New("INDEX_UNAVAILABLE")
	ErrQueryFailed      = errors.New("INDEX_QUERY_FAILED")
	ErrUpsertFailed     = errors.New("INDEX_UPSERT_FAILED")
)

// Namespaces queried by the knowledge retriever.
const (
	NamespaceDefault = "default"
	NamespaceRoot    = ""
)

// Metadata keys written by the document loader.
const (
	MetaText   = "text"
	MetaSource = "source"
	MetaTitle  = "title"
)

type Vector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type QueryRequest struct {
	Vector          []float32
	TopK            int
	Namespace       string
	IncludeMetadata bool
}

type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MetaString reads a string metadata value, empty when absent.
func (m Match) MetaString(key string) string {
	if m.Metadata == nil {
		return ""
	}
	if s, ok := m.Metadata[key].(string); ok {
		return s
	}
	return ""
}

type Stats struct {
	TotalVectorCount int64            `json:"totalVectorCount"`
	Dimension        int              `json:"dimension"`
	Namespaces       map[string]int64 `json:"namespaces"`
}

// Index is a similarity index over embedded passages.
type Index interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Query(ctx context.Context, req QueryRequest) ([]Match, error)
	DescribeStats(ctx context.Context) (*Stats, error)
}
