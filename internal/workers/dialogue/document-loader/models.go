// internal/workers/dialogue/document-loader/models.go
package documentloader

type Input struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

// LoadResult summarizes one ingestion run.
type LoadResult struct {
	Success   bool     `json:"success"`
	Files     int      `json:"files"`
	Chunks    int      `json:"chunks"`
	Dimension int      `json:"dimension"`
	Embedder  string   `json:"embedder,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Message   string   `json:"message"`
}

type document struct {
	path  string
	title string
	text  string
}
