package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/convotutor/internal/models"
	"github.com/hyperjump/convotutor/internal/vector"
)

// SQLiteStore implements SnapshotStore using SQLite. Vectors are stored as
// little-endian float32 blobs.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL,
		built_at TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_entries (
		snapshot_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		unit_id TEXT NOT NULL,
		content TEXT NOT NULL,
		page INTEGER NOT NULL,
		source_id TEXT NOT NULL,
		source_name TEXT,
		format TEXT,
		vector BLOB NOT NULL,
		PRIMARY KEY (snapshot_id, position),
		FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveSnapshot writes every entry of idx and removes older snapshots in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, idx *vector.Index) error {
	if idx == nil {
		return models.InvalidParameter("snapshot index is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_entries`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, dimensions, built_at, saved_at) VALUES (?, ?, ?, ?)`,
		idx.ID(), idx.Dimensions(), idx.BuiltAt().UTC().Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_entries (snapshot_id, position, unit_id, content, page, source_id, source_name, format, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range idx.Entries() {
		md := e.Unit.Metadata
		if _, err := stmt.ExecContext(ctx, idx.ID(), i, e.Unit.ID, e.Unit.Content,
			md.Page, md.SourceID, md.SourceName, md.Format, vector.EncodeVector(e.Vector)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadLatest returns the stored snapshot, or nil when the store is empty.
func (s *SQLiteStore) LoadLatest(ctx context.Context) (*vector.Index, error) {
	var id, builtAtRaw string
	var dims int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, dimensions, built_at FROM snapshots ORDER BY saved_at DESC LIMIT 1`,
	).Scan(&id, &dims, &builtAtRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	builtAt, err := time.Parse(time.RFC3339Nano, builtAtRaw)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: bad built_at: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, content, page, source_id, source_name, format, vector
		 FROM snapshot_entries WHERE snapshot_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []vector.Entry
	for rows.Next() {
		var e vector.Entry
		var name, format sql.NullString
		var blob []byte
		if err := rows.Scan(&e.Unit.ID, &e.Unit.Content, &e.Unit.Metadata.Page, &e.Unit.Metadata.SourceID,
			&name, &format, &blob); err != nil {
			return nil, err
		}
		e.Unit.Metadata.SourceName = name.String
		e.Unit.Metadata.Format = format.String
		if e.Vector, err = vector.DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("snapshot %s entry %s: %w", id, e.Unit.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vector.Restore(id, dims, builtAt, entries)
}

// Stats returns the stored snapshot id, its entry count and the database size on disk.
func (s *SQLiteStore) Stats(ctx context.Context) (*SnapshotStats, error) {
	st := &SnapshotStats{}
	err := s.db.QueryRowContext(ctx, `SELECT id, dimensions FROM snapshots LIMIT 1`).Scan(&st.SnapshotID, &st.Dimensions)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_entries`).Scan(&st.Units); err != nil {
		return nil, err
	}
	// WAL and shared-memory files count toward the footprint.
	st.DiskBytes, err = DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
