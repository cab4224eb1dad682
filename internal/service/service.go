// Package service orchestrates classification and case persistence for
// prediction requests.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hurttlocker/gavel/internal/model"
	"github.com/hurttlocker/gavel/internal/store"
)

// HistoryLimit is how many cases a history request returns.
const HistoryLimit = 10

// caseNumberLayout formats auto-generated case numbers. Second resolution:
// two same-second submissions without explicit numbers collide, and the
// store's uniqueness constraint rejects the second instead of overwriting.
const caseNumberLayout = "20060102150405"

// ErrMissingDescription marks a submission without the required
// description. Reported before the classifier or store are touched.
var ErrMissingDescription = errors.New("description is required")

// SubmitRequest carries a prediction submission. Only Description is
// required; the rest default when empty.
type SubmitRequest struct {
	Description string `json:"description"`
	Title       string `json:"title"`
	Plaintiff   string `json:"plaintiff"`
	Defendant   string `json:"defendant"`
	CaseType    string `json:"case_type"`
	CaseNumber  string `json:"case_number"`
}

// Service wires the classifier to the case store. The classifier is
// injected, constructed once per process, never reloaded here.
type Service struct {
	clf model.Predictor
	st  store.Store
	now func() time.Time
}

// New creates a prediction service.
func New(clf model.Predictor, st store.Store) *Service {
	return &Service{clf: clf, st: st, now: time.Now}
}

// Submit classifies the description, builds a case record with defaults
// filled in, persists it, and returns the stored record. Classifier and
// store failures surface unwrapped in kind; nothing is retried.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.Case, error) {
	if req.Description == "" {
		return nil, ErrMissingDescription
	}

	verdict, confidence, err := s.clf.Predict(ctx, req.Description)
	if err != nil {
		return nil, fmt.Errorf("classifying description: %w", err)
	}

	c := &store.Case{
		CaseNumber:      req.CaseNumber,
		Title:           req.Title,
		Description:     req.Description,
		Plaintiff:       req.Plaintiff,
		Defendant:       req.Defendant,
		CaseType:        req.CaseType,
		Verdict:         verdict,
		ConfidenceScore: confidence,
	}
	if c.CaseNumber == "" {
		c.CaseNumber = "CASE-" + s.now().UTC().Format(caseNumberLayout)
	}
	if c.Title == "" {
		c.Title = "Untitled Case"
	}
	if c.Plaintiff == "" {
		c.Plaintiff = "Unknown"
	}
	if c.Defendant == "" {
		c.Defendant = "Unknown"
	}
	if c.CaseType == "" {
		c.CaseType = "General"
	}

	if _, err := s.st.AddCase(ctx, c); err != nil {
		return nil, fmt.Errorf("storing case: %w", err)
	}
	return c, nil
}

// GetCase returns the stored case with the given id.
func (s *Service) GetCase(ctx context.Context, id int64) (*store.Case, error) {
	return s.st.GetCase(ctx, id)
}

// History returns the most recently created cases, newest first.
func (s *Service) History(ctx context.Context) ([]*store.Case, error) {
	return s.st.ListRecent(ctx, HistoryLimit)
}
