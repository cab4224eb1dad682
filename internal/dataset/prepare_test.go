package dataset

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hurttlocker/gavel/internal/model"
	"github.com/hurttlocker/gavel/internal/store"
)

func makeCases(t *testing.T, verdictCounts map[model.Verdict]int) []*store.Case {
	t.Helper()
	var cases []*store.Case
	i := 0
	for _, v := range []model.Verdict{model.VerdictGuilty, model.VerdictNotGuilty, model.VerdictInconclusive} {
		for n := 0; n < verdictCounts[v]; n++ {
			i++
			cases = append(cases, &store.Case{
				ID:              int64(i),
				CaseNumber:      fmt.Sprintf("CASE-%04d", i),
				Description:     fmt.Sprintf("Description   of Case %d with MIXED case text", i),
				CaseType:        "General",
				Verdict:         v,
				ConfidenceScore: 0.8,
			})
		}
	}
	return cases
}

func splitCaseNumbers(split *Split) map[string]int {
	seen := make(map[string]int)
	for _, s := range split.Train {
		seen[s.CaseNumber]++
	}
	for _, s := range split.Validation {
		seen[s.CaseNumber]++
	}
	return seen
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello   World", "hello world"},
		{"  MIXED\tCase\n\nText  ", "mixed case text"},
		{"already normal", "already normal"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Hello   World", "A.  B.\tC", "  x  ", "ümlauts   Everywhere"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestPrepare_EmptyInput(t *testing.T) {
	_, err := Prepare(nil, DefaultSeed)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestPrepare_UnknownVerdict(t *testing.T) {
	cases := makeCases(t, map[model.Verdict]int{model.VerdictGuilty: 3, model.VerdictNotGuilty: 3})
	cases[1].Verdict = "Appealed"

	_, err := Prepare(cases, DefaultSeed)
	if !errors.Is(err, ErrUnknownVerdict) {
		t.Fatalf("expected ErrUnknownVerdict, got %v", err)
	}
}

func TestPrepare_StratifiedExample(t *testing.T) {
	// 20 cases with label counts (7,7,6): canStratify, testSize = max(4,3) = 4.
	cases := makeCases(t, map[model.Verdict]int{
		model.VerdictGuilty:       7,
		model.VerdictNotGuilty:    7,
		model.VerdictInconclusive: 6,
	})

	split, err := Prepare(cases, DefaultSeed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if !split.Stratified {
		t.Error("expected stratified split")
	}
	if split.Warning != "" {
		t.Errorf("unexpected warning: %q", split.Warning)
	}
	if len(split.Validation) != 4 {
		t.Errorf("expected 4 validation rows, got %d", len(split.Validation))
	}
	if len(split.Train) != 16 {
		t.Errorf("expected 16 train rows, got %d", len(split.Train))
	}

	valLabels := make(map[int]int)
	for _, s := range split.Validation {
		valLabels[s.Label]++
	}
	for label := 0; label < 3; label++ {
		if valLabels[label] == 0 {
			t.Errorf("label %d missing from validation set", label)
		}
	}
}

func TestPrepare_PartitionInvariant(t *testing.T) {
	for _, counts := range []map[model.Verdict]int{
		{model.VerdictGuilty: 7, model.VerdictNotGuilty: 7, model.VerdictInconclusive: 6},
		{model.VerdictGuilty: 50, model.VerdictNotGuilty: 3, model.VerdictInconclusive: 2},
		{model.VerdictGuilty: 4, model.VerdictNotGuilty: 1},
		{model.VerdictGuilty: 2, model.VerdictNotGuilty: 2},
	} {
		cases := makeCases(t, counts)
		split, err := Prepare(cases, DefaultSeed)
		if err != nil {
			t.Fatalf("Prepare(%v) failed: %v", counts, err)
		}

		if len(split.Train)+len(split.Validation) != len(cases) {
			t.Errorf("counts %v: |train|+|val| = %d, want %d",
				counts, len(split.Train)+len(split.Validation), len(cases))
		}

		seen := splitCaseNumbers(split)
		if len(seen) != len(cases) {
			t.Errorf("counts %v: %d distinct rows in output, want %d", counts, len(seen), len(cases))
		}
		for num, hits := range seen {
			if hits != 1 {
				t.Errorf("counts %v: case %s appears %d times", counts, num, hits)
			}
		}
	}
}

func TestPrepare_UnstratifiableWarns(t *testing.T) {
	// One label has a single sample: no stratification guarantee.
	cases := makeCases(t, map[model.Verdict]int{
		model.VerdictGuilty:    9,
		model.VerdictNotGuilty: 1,
	})

	split, err := Prepare(cases, DefaultSeed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if split.Stratified {
		t.Error("expected non-stratified split")
	}
	if split.Warning == "" {
		t.Error("expected a non-fatal warning")
	}
	if len(split.Validation) != 2 {
		t.Errorf("expected floor(0.2*10) = 2 validation rows, got %d", len(split.Validation))
	}
}

func TestPrepare_SmallSetClamp(t *testing.T) {
	// 4 cases, 3 labels: canStratify false (two singleton labels),
	// testSize = floor(0.8) = 0, bumped to 1 so validation is non-empty.
	cases := makeCases(t, map[model.Verdict]int{
		model.VerdictGuilty:       2,
		model.VerdictNotGuilty:    1,
		model.VerdictInconclusive: 1,
	})

	split, err := Prepare(cases, DefaultSeed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if len(split.Validation) == 0 || len(split.Train) == 0 {
		t.Errorf("both partitions must be non-empty for 4 rows / 3 labels: train=%d val=%d",
			len(split.Train), len(split.Validation))
	}
}

func TestPrepare_StratifiedTinyBalanced(t *testing.T) {
	// 6 cases, 3 labels of 2 each: canStratify, testSize = max(1,3) = 3.
	cases := makeCases(t, map[model.Verdict]int{
		model.VerdictGuilty:       2,
		model.VerdictNotGuilty:    2,
		model.VerdictInconclusive: 2,
	})

	split, err := Prepare(cases, DefaultSeed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if len(split.Validation) != 3 {
		t.Errorf("expected 3 validation rows, got %d", len(split.Validation))
	}
	if len(split.Train) != 3 {
		t.Errorf("expected 3 train rows, got %d", len(split.Train))
	}
}

func TestPrepare_Reproducible(t *testing.T) {
	cases := makeCases(t, map[model.Verdict]int{
		model.VerdictGuilty:       7,
		model.VerdictNotGuilty:    7,
		model.VerdictInconclusive: 6,
	})

	a, err := Prepare(cases, DefaultSeed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	b, err := Prepare(cases, DefaultSeed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	for i := range a.Validation {
		if a.Validation[i].CaseNumber != b.Validation[i].CaseNumber {
			t.Fatalf("same seed produced different validation sets at row %d", i)
		}
	}

	c, err := Prepare(cases, 1337)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	same := len(c.Validation) == len(a.Validation)
	if same {
		for i := range a.Validation {
			if a.Validation[i].CaseNumber != c.Validation[i].CaseNumber {
				same = false
				break
			}
		}
	}
	if same {
		t.Error("different seeds should almost surely produce different partitions")
	}
}

func TestPrepare_NormalizesAndLabels(t *testing.T) {
	cases := makeCases(t, map[model.Verdict]int{model.VerdictGuilty: 2, model.VerdictNotGuilty: 2})

	split, err := Prepare(cases, DefaultSeed)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	for _, s := range append(split.Train, split.Validation...) {
		if s.ProcessedText != Normalize(s.Description) {
			t.Errorf("processed text %q does not match normalized description", s.ProcessedText)
		}
		wantLabel, err := s.Verdict.Label()
		if err != nil {
			t.Fatalf("unexpected verdict: %v", err)
		}
		if s.Label != wantLabel {
			t.Errorf("verdict %q: label %d, want %d", s.Verdict, s.Label, wantLabel)
		}
	}
}
