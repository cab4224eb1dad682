// Package retrain regenerates the labeled training dataset from the
// accumulated case records.
package retrain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hurttlocker/gavel/internal/dataset"
	"github.com/hurttlocker/gavel/internal/store"
)

// Report describes one dataset regeneration run.
type Report struct {
	Timestamp      string         `json:"timestamp"`
	Scanned        int            `json:"scanned"`
	TrainRows      int            `json:"train_rows"`
	ValidationRows int            `json:"validation_rows"`
	LabelCounts    map[string]int `json:"label_counts"`
	Stratified     bool           `json:"stratified"`
	Warning        string         `json:"warning,omitempty"`
	TrainPath      string         `json:"train_path"`
	ValidationPath string         `json:"validation_path"`
}

// Runner drives dataset regeneration. Not designed for concurrent runs
// against the same data directory; RunLoop keeps one run in flight.
type Runner struct {
	st    store.Store
	files *dataset.Files
	seed  int64
}

// NewRunner creates a Runner writing splits through files with the given
// split seed.
func NewRunner(st store.Store, files *dataset.Files, seed int64) *Runner {
	return &Runner{st: st, files: files, seed: seed}
}

// Run loads every stored case, prepares a split, and persists both
// partitions under a shared timestamp.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	cases, err := r.st.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cases: %w", err)
	}

	split, err := dataset.Prepare(cases, r.seed)
	if err != nil {
		return nil, err
	}

	trainPath, valPath, err := r.files.SaveSplit(split)
	if err != nil {
		return nil, fmt.Errorf("saving split: %w", err)
	}

	report := &Report{
		Timestamp:      split.Timestamp,
		Scanned:        len(cases),
		TrainRows:      len(split.Train),
		ValidationRows: len(split.Validation),
		LabelCounts:    make(map[string]int),
		Stratified:     split.Stratified,
		Warning:        split.Warning,
		TrainPath:      trainPath,
		ValidationPath: valPath,
	}
	for _, c := range cases {
		report.LabelCounts[string(c.Verdict)]++
	}
	return report, nil
}

// RunLoop regenerates the dataset every interval until ctx is canceled.
// Failed runs are reported to stderr and the loop continues; an empty
// store is expected early on and skipped quietly.
func (r *Runner) RunLoop(ctx context.Context, interval time.Duration, onReport func(*Report)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := r.Run(ctx)
			if err != nil {
				if errors.Is(err, dataset.ErrEmptyInput) {
					continue
				}
				fmt.Fprintf(os.Stderr, "retrain: %v\n", err)
				continue
			}
			if onReport != nil {
				onReport(report)
			}
		}
	}
}
