// Package vector provides an immutable in-memory vector index with cosine similarity search.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/convotutor/internal/models"
)

// Entry pairs a text unit with its embedding.
type Entry struct {
	Vector []float32
	Unit   models.TextUnit
}

// Index is a snapshot of the entries of one processing pass. It is never mutated after
// construction, so any number of goroutines may search it while a new index is being built.
// Replacing the active index means swapping in a new *Index.
type Index struct {
	id         string
	dimensions int
	entries    []Entry
	builtAt    time.Time
}

// NewIndex builds an index over units, where vectors[i] is the embedding of units[i].
// Vectors are copied and L2-normalised so search is a plain inner product. Units keep
// their order, which is the tie-break order during search.
func NewIndex(dimensions int, units []models.TextUnit, vectors [][]float32) (*Index, error) {
	if len(units) != len(vectors) {
		return nil, models.InvalidParameter("units and vectors length mismatch: %d vs %d", len(units), len(vectors))
	}
	entries := make([]Entry, len(units))
	for i := range units {
		entries[i] = Entry{Vector: vectors[i], Unit: units[i]}
	}
	return Restore(uuid.NewString(), dimensions, time.Now().UTC(), entries)
}

// Restore rebuilds an index from previously built entries, keeping its id and build time.
func Restore(id string, dimensions int, builtAt time.Time, entries []Entry) (*Index, error) {
	if dimensions <= 0 {
		return nil, models.InvalidParameter("dimensions must be positive, got %d", dimensions)
	}
	own := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dimensions {
			return nil, models.InvalidParameter("vector %d dimension mismatch: got %d, expected %d", i, len(e.Vector), dimensions)
		}
		vec, err := Normalized(e.Vector)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		own[i] = Entry{Vector: vec, Unit: e.Unit}
	}
	return &Index{id: id, dimensions: dimensions, entries: own, builtAt: builtAt}, nil
}

// Search returns up to k entries ranked by cosine similarity to query, most similar
// first. Equal scores keep insertion order. When k exceeds the index size every entry is
// returned. An empty index yields an empty result regardless of the query.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]*models.RetrievalHit, error) {
	if k <= 0 {
		return nil, models.InvalidParameter("k must be positive, got %d", k)
	}
	if ix == nil || len(ix.entries) == 0 {
		return []*models.RetrievalHit{}, nil
	}
	if len(query) != ix.dimensions {
		return nil, models.InvalidParameter("query dimension mismatch: got %d, expected %d", len(query), ix.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := Normalized(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(ix.entries))
	for i := range ix.entries {
		scores[i] = scored{pos: i, score: InnerProduct(q, ix.entries[i].Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	hits := make([]*models.RetrievalHit, k)
	for i := 0; i < k; i++ {
		hits[i] = &models.RetrievalHit{
			Unit:  ix.entries[scores[i].pos].Unit,
			Score: scores[i].score,
			Rank:  i + 1,
		}
	}
	return hits, nil
}

// ID returns the unique id assigned when the index was built.
func (ix *Index) ID() string { return ix.id }

// Dimensions returns the vector dimension.
func (ix *Index) Dimensions() int { return ix.dimensions }

// Size returns the number of entries.
func (ix *Index) Size() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// BuiltAt returns when the index was built.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Entries returns a copy of the entries in insertion order. Vectors are shared and must
// not be modified.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Sources returns the distinct source names in insertion order.
func (ix *Index) Sources() []string {
	if ix == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range ix.entries {
		name := e.Unit.Metadata.SourceName
		if name == "" {
			name = e.Unit.Metadata.SourceID
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Normalized returns a unit-length copy of x. The zero vector is returned as zeros;
// NaN or infinite components are rejected.
func Normalized(x []float32) ([]float32, error) {
	out := make([]float32, len(x))
	for i, v := range x {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, models.InvalidParameter("non-finite component at %d", i)
		}
		out[i] = v
	}
	norm := L2Norm(out)
	if norm == 0 {
		return out, nil
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out, nil
}
