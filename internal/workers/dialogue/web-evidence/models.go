// internal/workers/dialogue/web-evidence/models.go
package webevidence

import (
	apperrors "dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/models"
)

type Input struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// GatherResult is the outcome of one web query. Success with no items is the
// normal "nothing found" branch.
type GatherResult struct {
	Success      bool                  `json:"success"`
	Query        string                `json:"query"`
	Items        []models.EvidenceItem `json:"items"`
	TotalResults string                `json:"totalResults,omitempty"`
	Message      string                `json:"message,omitempty"`
	ErrorCode    apperrors.ErrorCode   `json:"errorCode,omitempty"`
}

// Valid returns the items usable as grounding.
func (r *GatherResult) Valid() []models.EvidenceItem {
	return models.ValidEvidence(r.Items)
}
