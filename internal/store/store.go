// Package store manages the SQLite file that backs all dataset storage.
//
// A Store is opened once per session and handed to every component that
// needs it; nothing else opens the file. The handle enforces the access
// discipline the rest of the system relies on: at most one writer
// transaction at a time, readers free to run concurrently with each other
// but never alongside an active writer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrSchemaMismatch is returned by Open when the file at the requested path
// already contains tables whose shape does not match the expected schema.
var ErrSchemaMismatch = errors.New("incompatible existing schema")

// Store wraps the SQLite handle with the single-writer / concurrent-reader
// discipline. All writes go through Update, all reads through View.
type Store struct {
	db   *sql.DB
	path string

	// mu arbitrates access: Update holds the write side for the full
	// lifetime of its transaction, View holds the read side.
	mu sync.RWMutex
}

// Open creates or opens the store file at path and ensures the schema is
// present. Opening an already-initialized store is a no-op beyond the
// verification pass. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := "file:" + path +
		"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}

	s := &Store{db: db, path: path}

	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the filesystem path of the store file.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying database handle. Callers must ensure no
// Update or View is in flight.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn inside a single write transaction, holding the writer lock
// for its full duration. The transaction is rolled back if fn returns an
// error and committed otherwise. The store is observably either "before" or
// "after" fn, never in between.
func (s *Store) Update(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn with shared read access. Multiple Views may run concurrently;
// none overlaps an Update.
func (s *Store) View(ctx context.Context, fn func(db *sql.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.db)
}
