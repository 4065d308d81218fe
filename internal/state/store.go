// Package state stores the history of governance runs in SQLite.
//
// The history is written after a run completes and is only read by the
// history command; evaluation never depends on it.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// ErrNotOpen is returned when the store has no database.
var ErrNotOpen = errors.New("database not opened")

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Store is the run history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an open database. The caller runs Migrate.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// Open opens (creating if needed) the history database at path and
// applies pending migrations. Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
		dsn = "file:" + path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("history opened", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
