// Package indexer turns document batches into vector indexes.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/embedding"
	"github.com/hyperjump/convotutor/internal/extract"
	"github.com/hyperjump/convotutor/internal/models"
	"github.com/hyperjump/convotutor/internal/vector"
)

// Indexer segments documents, embeds their pages and builds a fresh index per batch.
type Indexer struct {
	segmenter *extract.Segmenter
	embedder  embedding.Embedder
	batchSize int
	workers   int
	logger    *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (document segmented, index built, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithConcurrency sets how many texts go into one embedding call and how many calls may
// run at once. Non-positive values keep the defaults (32 texts, 1 worker).
func WithConcurrency(batchSize, workers int) IndexerOption {
	return func(idx *Indexer) {
		if batchSize > 0 {
			idx.batchSize = batchSize
		}
		if workers > 0 {
			idx.workers = workers
		}
	}
}

// NewIndexer creates an indexer. segmenter may be nil, in which case a default one is used.
func NewIndexer(embedder embedding.Embedder, segmenter *extract.Segmenter, opts ...IndexerOption) *Indexer {
	if segmenter == nil {
		segmenter = extract.NewSegmenter()
	}
	idx := &Indexer{
		segmenter: segmenter,
		embedder:  embedder,
		batchSize: 32,
		workers:   1,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Dimensions returns the dimension of the indexes this indexer builds.
func (idx *Indexer) Dimensions() int {
	return idx.embedder.Dimensions()
}

// Build embeds every unit and returns an index over all of them, in the given order.
// Any embedding failure fails the whole build with models.ErrIndexBuild; no partial
// index is ever returned. An empty unit list yields a valid empty index.
func (idx *Indexer) Build(ctx context.Context, units []models.TextUnit) (*vector.Index, error) {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Content
	}
	vectors, err := embedding.EmbedConcurrently(ctx, idx.embedder, texts, idx.batchSize, idx.workers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIndexBuild, err)
	}
	index, err := vector.NewIndex(idx.embedder.Dimensions(), units, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIndexBuild, err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer index built", zap.String("index_id", index.ID()), zap.Int("units", index.Size()))
	}
	return index, nil
}

// BatchResult is the outcome of processing one batch of documents.
type BatchResult struct {
	Index     *vector.Index                `json:"-"`
	Documents int                          `json:"documents"`
	Units     int                          `json:"units"`
	Failed    []*models.DocumentParseError `json:"failed,omitempty"`
}

// Summary reports the batch outcome without the index itself. A nil result is an empty summary.
func (r *BatchResult) Summary() *models.ProcessSummary {
	sum := &models.ProcessSummary{}
	if r == nil {
		return sum
	}
	sum.Documents, sum.Units = r.Documents, r.Units
	if r.Index != nil {
		sum.IndexID = r.Index.ID()
	}
	for _, pe := range r.Failed {
		sum.Failed = append(sum.Failed, models.FailedDocument{Name: pe.Name, SourceID: pe.SourceID, Error: pe.Error()})
	}
	return sum
}

// ProcessDocuments segments every document of the batch and builds one index over the
// pages of all documents that parsed, in batch order. Documents that fail to parse are
// listed in Failed and skipped. If every document fails, the joined parse errors are
// returned with a result that has no index. A document appearing twice (same source id)
// is indexed once.
func (idx *Indexer) ProcessDocuments(ctx context.Context, docs []*models.DocumentInput) (*BatchResult, error) {
	if len(docs) == 0 {
		return nil, models.InvalidParameter("no documents to process")
	}
	res := &BatchResult{}
	var units []models.TextUnit
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := idx.segmenter.Segment(doc)
		if err != nil {
			var pe *models.DocumentParseError
			if !errors.As(err, &pe) {
				pe = &models.DocumentParseError{Err: err}
				if doc != nil {
					pe.SourceID, pe.Name = doc.SourceID, doc.Name
				}
			}
			res.Failed = append(res.Failed, pe)
			if idx.logger != nil {
				idx.logger.Debug("indexer document skipped", zap.String("name", pe.Name), zap.Error(pe.Err))
			}
			continue
		}
		if len(pages) > 0 {
			source := pages[0].Metadata.SourceID
			if seen[source] {
				continue
			}
			seen[source] = true
		}
		res.Documents++
		units = append(units, pages...)
		if idx.logger != nil {
			idx.logger.Debug("indexer document segmented", zap.String("name", doc.Name), zap.Int("pages", len(pages)))
		}
	}
	if res.Documents == 0 {
		errs := make([]error, len(res.Failed))
		for i, pe := range res.Failed {
			errs[i] = pe
		}
		return res, errors.Join(errs...)
	}

	index, err := idx.Build(ctx, units)
	if err != nil {
		return nil, err
	}
	res.Index = index
	res.Units = index.Size()
	return res, nil
}

// CollectDirectory reads every regular file under dir whose extension is in allowedExts
// (all supported formats when empty). Subdirectories are walked only when recursive is
// set. Files are returned sorted by path so rebuilds are deterministic.
func CollectDirectory(dir string, allowedExts []string, recursive bool) ([]*models.DocumentInput, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !fileAllowed(path, allowedExts) {
			return nil
		}
		// Resolve symlinks so we only read regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	docs := make([]*models.DocumentInput, 0, len(paths))
	for _, p := range paths {
		doc, err := extract.ReadDocument(p)
		if err != nil {
			return nil, err
		}
		if rel, relErr := filepath.Rel(absDir, p); relErr == nil {
			doc.Name = rel
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func fileAllowed(path string, allowedExts []string) bool {
	if len(allowedExts) == 0 {
		return extract.Supported(path)
	}
	return extensionAllowed(filepath.Ext(path), allowedExts)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
