package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/gavel/internal/model"
)

const caseColumns = `id, case_number, title, description, plaintiff, defendant,
	case_type, verdict, confidence_score, created_at`

// AddCase inserts a new case record and returns its id. A case number that
// already exists fails with ErrDuplicateCaseNumber instead of overwriting.
func (s *SQLiteStore) AddCase(ctx context.Context, c *Case) (int64, error) {
	if c.Description == "" {
		return 0, fmt.Errorf("case description cannot be empty")
	}
	if c.CaseNumber == "" {
		return 0, fmt.Errorf("case number cannot be empty")
	}
	if !c.Verdict.Valid() {
		return 0, fmt.Errorf("unknown verdict %q", string(c.Verdict))
	}
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 1 {
		return 0, fmt.Errorf("confidence %f out of [0,1]", c.ConfidenceScore)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (case_number, title, description, plaintiff, defendant, case_type, verdict, confidence_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CaseNumber, c.Title, c.Description, c.Plaintiff, c.Defendant,
		c.CaseType, string(c.Verdict), c.ConfidenceScore, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateCaseNumber, c.CaseNumber)
		}
		return 0, fmt.Errorf("inserting case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	return id, nil
}

// GetCase retrieves a case by id.
func (s *SQLiteStore) GetCase(ctx context.Context, id int64) (*Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	return scanCase(row)
}

// GetCaseByNumber retrieves a case by its unique case number.
func (s *SQLiteStore) GetCaseByNumber(ctx context.Context, caseNumber string) (*Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE case_number = ?`, caseNumber)
	return scanCase(row)
}

// ListRecent returns the limit most recently created cases, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*Case, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent cases: %w", err)
	}
	defer rows.Close()

	return collectCases(rows)
}

// ListAll returns every stored case in insertion order. Used by dataset
// preparation and export.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	defer rows.Close()

	return collectCases(rows)
}

// CountCases returns the number of stored cases.
func (s *SQLiteStore) CountCases(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting cases: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*Case, error) {
	c := &Case{}
	var verdict string

	err := row.Scan(&c.ID, &c.CaseNumber, &c.Title, &c.Description,
		&c.Plaintiff, &c.Defendant, &c.CaseType, &verdict,
		&c.ConfidenceScore, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning case: %w", err)
	}

	v, err := model.ParseVerdict(verdict)
	if err != nil {
		return nil, fmt.Errorf("stored case %d: %w", c.ID, err)
	}
	c.Verdict = v
	return c, nil
}

func collectCases(rows *sql.Rows) ([]*Case, error) {
	var cases []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cases: %w", err)
	}
	return cases, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The modernc driver surfaces these as plain error strings.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
