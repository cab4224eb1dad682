// Package store provides the SQLite storage layer for gavel.
//
// All prediction history lives in a single SQLite database file. A case row
// is written once per prediction and never mutated afterwards; dataset
// preparation and export read the accumulated rows back out.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/gavel/internal/model"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.gavel/gavel.db"

var (
	// ErrNotFound marks a lookup for a case that does not exist.
	ErrNotFound = errors.New("case not found")

	// ErrDuplicateCaseNumber marks an insert that collides with an
	// existing case number. Uniqueness is enforced by the schema so
	// same-second auto-generated numbers can never silently overwrite
	// an earlier record.
	ErrDuplicateCaseNumber = errors.New("duplicate case number")
)

// Case is a persisted prediction record. Verdict and ConfidenceScore are
// always produced together by the classifier; nothing sets them
// independently.
type Case struct {
	ID              int64         `json:"id"`
	CaseNumber      string        `json:"case_number"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Plaintiff       string        `json:"plaintiff"`
	Defendant       string        `json:"defendant"`
	CaseType        string        `json:"case_type"`
	Verdict         model.Verdict `json:"verdict"`
	ConfidenceScore float64       `json:"confidence_score"`
	CreatedAt       time.Time     `json:"created_at"`
}

// StoreStats holds observability statistics about the store.
type StoreStats struct {
	CaseCount   int64
	DBSizeBytes int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the case persistence interface.
type Store interface {
	AddCase(ctx context.Context, c *Case) (int64, error)
	GetCase(ctx context.Context, id int64) (*Case, error)
	GetCaseByNumber(ctx context.Context, caseNumber string) (*Case, error)
	ListRecent(ctx context.Context, limit int) ([]*Case, error)
	ListAll(ctx context.Context) ([]*Case, error)
	CountCases(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// GetDB exposes the underlying handle for callers that need raw queries.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns row counts and the on-disk database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases").Scan(&stats.CaseCount); err != nil {
		return nil, fmt.Errorf("counting cases: %w", err)
	}

	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = info.Size()
		}
	}
	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
