package models

import "unicode/utf8"

// MinEvidenceLength is the shortest text, in characters, usable as evidence.
const MinEvidenceLength = 50

// EvidenceItem is one scored piece of web or knowledge evidence.
type EvidenceItem struct {
	Title        string  `json:"title"`
	URLOrID      string  `json:"url"`
	Text         string  `json:"content"`
	Snippet      string  `json:"snippet,omitempty"`
	RawScore     float64 `json:"raw_score,omitempty"`
	QualityScore float64 `json:"quality_score"`
	Rank         int     `json:"rank"`
	Success      bool    `json:"success"`
	WordCount    int     `json:"word_count"`
}

// Valid reports whether the item is usable grounding: fetched and long enough.
func (e EvidenceItem) Valid() bool {
	return e.Success && utf8.RuneCountInString(e.Text) >= MinEvidenceLength
}

// SourceRef is provenance attached to an answer.
type SourceRef struct {
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	QualityScore float64 `json:"quality_score"`
}

// ValidEvidence filters items down to the usable ones, keeping order.
func ValidEvidence(items []EvidenceItem) []EvidenceItem {
	out := make([]EvidenceItem, 0, len(items))
	for _, it := range items {
		if it.Valid() {
			out = append(out, it)
		}
	}
	return out
}
