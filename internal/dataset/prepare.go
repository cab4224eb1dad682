package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/hurttlocker/gavel/internal/model"
	"github.com/hurttlocker/gavel/internal/store"
)

// DefaultSeed is the split seed used when callers don't supply one. Kept
// stable so regenerated datasets are comparable across runs.
const DefaultSeed = 42

// testFraction is the share of rows targeted for the validation set.
const testFraction = 0.2

// TimestampLayout tags split artifacts. Lexical order of these strings
// equals chronological order, which the latest-split lookup relies on.
const TimestampLayout = "20060102_150405"

var (
	// ErrEmptyInput marks a preparation run with no cases.
	ErrEmptyInput = errors.New("no cases to prepare")

	// ErrUnknownVerdict marks a case whose verdict is outside the fixed
	// enum. The whole run fails rather than dropping the row, so the
	// train/validation invariant can't be silently corrupted.
	ErrUnknownVerdict = errors.New("case has unknown verdict")
)

// Sample is the derived training view of one case. Recomputed on every
// preparation run, never stored on its own.
type Sample struct {
	ProcessedText   string
	Label           int
	CaseNumber      string
	Title           string
	Description     string
	Plaintiff       string
	Defendant       string
	CaseType        string
	Verdict         model.Verdict
	ConfidenceScore float64
	CreatedAt       time.Time
}

// Split is one train/validation partition. Train and Validation are
// disjoint and together contain every input row exactly once.
type Split struct {
	Timestamp  string
	Train      []Sample
	Validation []Sample
	Stratified bool
	Warning    string
}

// Prepare normalizes, labels, and partitions cases into a train/validation
// split. The shuffle is an explicit seeded Fisher–Yates over row indices, so
// a given (input order, seed) pair always yields the same partition.
func Prepare(cases []*store.Case, seed int64) (*Split, error) {
	if len(cases) == 0 {
		return nil, ErrEmptyInput
	}

	samples := make([]Sample, len(cases))
	labelCounts := make(map[int]int)
	for i, c := range cases {
		label, err := c.Verdict.Label()
		if err != nil {
			return nil, fmt.Errorf("%w: case %s has verdict %q", ErrUnknownVerdict, c.CaseNumber, string(c.Verdict))
		}
		samples[i] = Sample{
			ProcessedText:   Normalize(c.Description),
			Label:           label,
			CaseNumber:      c.CaseNumber,
			Title:           c.Title,
			Description:     c.Description,
			Plaintiff:       c.Plaintiff,
			Defendant:       c.Defendant,
			CaseType:        c.CaseType,
			Verdict:         c.Verdict,
			ConfidenceScore: c.ConfidenceScore,
			CreatedAt:       c.CreatedAt,
		}
		labelCounts[label]++
	}

	n := len(samples)
	k := len(labelCounts)

	canStratify := true
	for _, count := range labelCounts {
		if count < 2 {
			canStratify = false
			break
		}
	}

	testSize := int(testFraction * float64(n))
	if canStratify && testSize < k {
		testSize = k
	}
	if testSize >= n {
		// Guard against the split degenerating to the whole set.
		testSize = k
	}
	if testSize == 0 && n > k {
		// Tiny unstratifiable sets still get a non-empty validation set.
		testSize = 1
	}

	order := shuffledIndices(n, seed)

	split := &Split{
		Timestamp:  time.Now().UTC().Format(TimestampLayout),
		Stratified: canStratify,
	}

	if canStratify {
		quotas := stratifiedQuotas(labelCounts, n, testSize)
		for _, idx := range order {
			label := samples[idx].Label
			if quotas[label] > 0 {
				quotas[label]--
				split.Validation = append(split.Validation, samples[idx])
			} else {
				split.Train = append(split.Train, samples[idx])
			}
		}
	} else {
		split.Warning = "some classes have fewer than 2 samples; splitting without stratification"
		for i, idx := range order {
			if i < testSize {
				split.Validation = append(split.Validation, samples[idx])
			} else {
				split.Train = append(split.Train, samples[idx])
			}
		}
	}

	return split, nil
}

// shuffledIndices returns 0..n-1 permuted by a seeded Fisher–Yates shuffle.
func shuffledIndices(n int, seed int64) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

// stratifiedQuotas apportions testSize validation slots across labels in
// proportion to their overall counts: floor of the exact share first, at
// least one slot per represented label, and leftover slots by largest
// fractional remainder with ascending-label tie-breaks. Fully deterministic.
func stratifiedQuotas(labelCounts map[int]int, n, testSize int) map[int]int {
	labels := make([]int, 0, len(labelCounts))
	for label := range labelCounts {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	quotas := make(map[int]int, len(labels))
	remainders := make(map[int]float64, len(labels))
	total := 0
	for _, label := range labels {
		exact := float64(testSize) * float64(labelCounts[label]) / float64(n)
		q := int(exact)
		if q < 1 {
			q = 1
		}
		if q > labelCounts[label] {
			q = labelCounts[label]
		}
		quotas[label] = q
		remainders[label] = exact - float64(int(exact))
		total += q
	}

	// Hand out remaining slots by largest remainder.
	for total < testSize {
		best := -1
		for _, label := range labels {
			if quotas[label] >= labelCounts[label] {
				continue
			}
			if best == -1 || remainders[label] > remainders[best] {
				best = label
			}
		}
		if best == -1 {
			break
		}
		quotas[best]++
		remainders[best] = -1
		total++
	}

	// The minimum-one rule can overshoot; trim from the largest quotas.
	for total > testSize {
		best := -1
		for _, label := range labels {
			if quotas[label] <= 1 {
				continue
			}
			if best == -1 || quotas[label] > quotas[best] {
				best = label
			}
		}
		if best == -1 {
			break
		}
		quotas[best]--
		total--
	}

	return quotas
}
