// internal/workers/dialogue/knowledge-retriever/models.go
package knowledgeretriever

import (
	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/models"
)

type Input struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

// RetrievalResult is the knowledge lookup outcome. Empty index, unreachable
// index and zero matches are all reported with Success=false.
type RetrievalResult struct {
	Success       bool                  `json:"success"`
	Context       string                `json:"context"`
	Score         float64               `json:"score"`
	Sources       []models.SourceRef    `json:"sources"`
	Items         []models.EvidenceItem `json:"items"`
	TotalFound    int                   `json:"totalFound"`
	RelevantCount int                   `json:"relevantCount"`
	Embedder      string                `json:"embedder,omitempty"`
	Message       string                `json:"message"`
	ErrorCode     apperrors.ErrorCode   `json:"errorCode,omitempty"`
}
