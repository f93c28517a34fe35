// Package storage persists built vector indexes so a restarted process can serve the
// last successful processing pass without re-embedding.
package storage

import (
	"context"

	"github.com/hyperjump/convotutor/internal/vector"
)

// SnapshotStore saves and restores index snapshots. Only the latest snapshot is kept.
type SnapshotStore interface {
	// SaveSnapshot stores idx and discards any older snapshot atomically.
	SaveSnapshot(ctx context.Context, idx *vector.Index) error
	// LoadLatest returns the most recent snapshot, or nil when none has been saved.
	LoadLatest(ctx context.Context) (*vector.Index, error)
	// Stats reports what is currently stored.
	Stats(ctx context.Context) (*SnapshotStats, error)
	Close() error
}

// SnapshotStats summarises the stored snapshot.
type SnapshotStats struct {
	SnapshotID string `json:"snapshot_id,omitempty"`
	Units      int64  `json:"units"`
	Dimensions int    `json:"dimensions"`
	DiskBytes  int64  `json:"disk_bytes"`
}
