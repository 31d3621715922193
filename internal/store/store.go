// Package store provides the device-local relational store for no-border.
//
// The store is the source of truth for social content: users, posts, media,
// likes, saves, the active session, and the synced-post markers consumed by
// the sync engine. It runs on embedded SQLite (ncruces/go-sqlite3) with WAL
// mode so background sync reads never block foreground writes.
//
// Schema creation and migration live in schema.go; EnsureSchema must complete
// before any other operation runs against the connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with no-border specific functionality.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the file doesn't exist it is created; the caller must run
// EnsureSchema before issuing any other operation.
//
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

var (
	sharedOnce  sync.Once
	sharedStore *Store
	sharedErr   error
)

// OpenShared opens the process-wide store handle exactly once and returns
// the same handle (or the same open error) to every caller. Concurrent
// callers block on the first open instead of racing to open twice.
//
// The shared handle has EnsureSchema applied before it is published, so
// callers never observe a half-migrated connection.
func OpenShared(ctx context.Context, path string) (*Store, error) {
	sharedOnce.Do(func() {
		s, err := Open(path)
		if err != nil {
			sharedErr = err
			return
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			sharedErr = err
			return
		}
		sharedStore = s
	})
	return sharedStore, sharedErr
}

// RawDB returns the underlying sql.DB connection.
// Useful for integrating with other libraries that expect *sql.DB.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// timeLayout is RFC 3339 with a fixed nine-digit fraction so that the
// TEXT column sorts chronologically. Variable-width fractions would break
// lexicographic ordering in ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullIfEmpty converts "" to SQL NULL so optional TEXT columns stay null
// instead of accumulating empty strings.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
