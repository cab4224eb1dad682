package store

import "fmt"

// migrate creates all tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			case_number TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			plaintiff TEXT NOT NULL DEFAULT '',
			defendant TEXT NOT NULL DEFAULT '',
			case_type TEXT NOT NULL DEFAULT '',
			verdict TEXT NOT NULL,
			confidence_score REAL NOT NULL
				CHECK (confidence_score >= 0 AND confidence_score <= 1),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_created_at
			ON cases(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_verdict
			ON cases(verdict)`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}
