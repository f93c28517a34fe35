package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbedConcurrently embeds texts in batches of batchSize on at most workers goroutines.
// The result is in input order and is returned only once every batch has finished;
// the first failure cancels the remaining batches.
func EmbedConcurrently(ctx context.Context, e Embedder, texts []string, batchSize, workers int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	if workers <= 0 {
		workers = 1
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(texts); start += batchSize {
		start, end := start, min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
