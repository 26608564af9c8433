// internal/workers/dialogue/document-loader/handler.go
package documentloader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/providers/embedding"
	"dialogue-engine/internal/providers/vectorindex"

	"github.com/google/uuid"
)

const (
	TaskType = "document-loader"
)

var (
	ErrUnsupportedFile = errors.New("UNSUPPORTED_FILE")
	ErrEmptyDocument   = errors.New("EMPTY_DOCUMENT")
)

// EmbedderSource hands out the embedding chain matching an index dimension,
// so ingestion and retrieval embed the same way.
type EmbedderSource interface {
	EmbedderFor(dim int) (*embedding.Chain, int)
}

// indexEnsurer is implemented by backends that must create their index first.
type indexEnsurer interface {
	EnsureIndex(ctx context.Context, dims int) error
}

type Handler struct {
	config    *Config
	index     vectorindex.Index
	embedders EmbedderSource
	logger    logger.Logger
}

func NewHandler(config *Config, index vectorindex.Index, embedders EmbedderSource, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		index:     index,
		embedders: embedders,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*LoadResult, error) {
	info, err := os.Stat(input.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return h.LoadDirectory(ctx, input.Path, input.Recursive)
	}
	return h.LoadFile(ctx, input.Path)
}

// LoadFile ingests a single file.
func (h *Handler) LoadFile(ctx context.Context, path string) (*LoadResult, error) {
	if !h.supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return h.ingest(ctx, []document{doc}, nil)
}

// LoadDirectory ingests every supported file under dir. Subdirectories are
// walked only when recursive is set.
func (h *Handler) LoadDirectory(ctx context.Context, dir string, recursive bool) (*LoadResult, error) {
	var docs []document
	var skipped []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !h.supported(path) {
			skipped = append(skipped, path)
			return nil
		}
		doc, err := readDocument(path)
		if err != nil {
			h.logger.Warn("skipping unreadable document", map[string]interface{}{"path": path, "error": err.Error()})
			skipped = append(skipped, path)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &LoadResult{Success: false, Skipped: skipped, Message: "No supported documents found in " + dir}, nil
	}
	return h.ingest(ctx, docs, skipped)
}

func (h *Handler) ingest(ctx context.Context, docs []document, skipped []string) (*LoadResult, error) {
	stats, err := h.index.DescribeStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vectorindex.ErrIndexUnavailable, err)
	}
	dim := stats.Dimension
	if dim <= 0 {
		dim = h.config.Dimension
	}
	chain, dim := h.embedders.EmbedderFor(dim)
	if dim <= 0 {
		dim = h.config.Dimension
	}
	if e, ok := h.index.(indexEnsurer); ok {
		if err := e.EnsureIndex(ctx, dim); err != nil {
			return nil, err
		}
	}

	result := &LoadResult{Dimension: dim, Skipped: skipped}
	batch := make([]vectorindex.Vector, 0, h.config.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := h.index.Upsert(ctx, h.config.Namespace, batch); err != nil {
			return err
		}
		result.Chunks += len(batch)
		batch = make([]vectorindex.Vector, 0, h.config.BatchSize)
		return nil
	}

	for _, doc := range docs {
		chunks := Chunk(doc.text, h.config.ChunkSize, h.config.ChunkOverlap)
		failed := false
		for _, c := range chunks {
			vec, name, err := chain.Embed(ctx, c)
			if err != nil {
				h.logger.Error("embedding failed", map[string]interface{}{"path": doc.path, "error": err.Error()})
				failed = true
				break
			}
			result.Embedder = name
			batch = append(batch, vectorindex.Vector{
				ID:     uuid.NewString(),
				Values: embedding.Resize(vec, dim),
				Metadata: map[string]interface{}{
					vectorindex.MetaText:   c,
					vectorindex.MetaSource: doc.path,
					vectorindex.MetaTitle:  doc.title,
				},
			})
			if len(batch) >= h.config.BatchSize {
				if err := flush(); err != nil {
					return nil, fmt.Errorf("%w: %v", vectorindex.ErrUpsertFailed, err)
				}
			}
		}
		if failed {
			result.Failed = append(result.Failed, doc.path)
			continue
		}
		result.Files++
		h.logger.Info("document chunked", map[string]interface{}{"path": doc.path, "chunks": len(chunks)})
	}
	if err := flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", vectorindex.ErrUpsertFailed, err)
	}

	result.Success = result.Files > 0
	result.Message = fmt.Sprintf("Loaded %d files, %d chunks", result.Files, result.Chunks)
	h.logger.Info("ingestion finished", map[string]interface{}{
		"files":     result.Files,
		"chunks":    result.Chunks,
		"failed":    len(result.Failed),
		"skipped":   len(result.Skipped),
		"dimension": dim,
	})
	return result, nil
}

func (h *Handler) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range h.config.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func readDocument(path string) (document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}
	return document{path: path, title: titleOf(path, text), text: text}, nil
}

// titleOf uses the first markdown heading, else the file name.
func titleOf(path, text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
		if line != "" {
			break
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
