package dataset

import (
	"time"

	"github.com/hurttlocker/gavel/internal/store"
)

// Statistics summarizes an accumulated case collection.
type Statistics struct {
	TotalCases           int            `json:"total_cases"`
	VerdictDistribution  map[string]int `json:"verdict_distribution"`
	CaseTypeDistribution map[string]int `json:"case_types"`
	AvgConfidence        float64        `json:"avg_confidence"`
	DateRange            DateRange      `json:"date_range"`
}

// DateRange is the created-at span of the collection.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ComputeStatistics derives corpus statistics from cases. An empty
// collection yields zero counts and an empty date range.
func ComputeStatistics(cases []*store.Case) *Statistics {
	stats := &Statistics{
		TotalCases:           len(cases),
		VerdictDistribution:  make(map[string]int),
		CaseTypeDistribution: make(map[string]int),
	}

	var confidenceSum float64
	for i, c := range cases {
		stats.VerdictDistribution[string(c.Verdict)]++
		stats.CaseTypeDistribution[c.CaseType]++
		confidenceSum += c.ConfidenceScore

		if i == 0 || c.CreatedAt.Before(stats.DateRange.Start) {
			stats.DateRange.Start = c.CreatedAt
		}
		if i == 0 || c.CreatedAt.After(stats.DateRange.End) {
			stats.DateRange.End = c.CreatedAt
		}
	}

	if len(cases) > 0 {
		stats.AvgConfidence = confidenceSum / float64(len(cases))
	}
	return stats
}
