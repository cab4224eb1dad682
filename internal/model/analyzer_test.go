package model

import (
	"context"
	"strings"
	"testing"
)

// mockPredictor returns a fixed prediction.
type mockPredictor struct {
	verdict    Verdict
	confidence float64
	err        error
	lastText   string
}

func (m *mockPredictor) Predict(_ context.Context, text string) (Verdict, float64, error) {
	m.lastText = text
	if m.err != nil {
		return "", 0, m.err
	}
	return m.verdict, m.confidence, nil
}

func TestAnalyze_DelegatesFullText(t *testing.T) {
	pred := &mockPredictor{verdict: VerdictGuilty, confidence: 0.91}
	a := NewAnalyzer(pred)

	doc := "Evidence shows the witness testimony. The court has jurisdiction. More text follows. And more. Final sentence."
	result, err := a.Analyze(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pred.lastText != doc {
		t.Error("classifier should receive the full document text")
	}
	if result.Verdict != VerdictGuilty || result.Confidence != 0.91 {
		t.Errorf("unexpected prediction: %q %f", result.Verdict, result.Confidence)
	}
}

func TestExtractLegalTerms_VocabularyExample(t *testing.T) {
	text := "Evidence shows the witness testimony."
	terms := ExtractLegalTerms(text)

	for _, want := range []string{"evidence", "witness", "testimony"} {
		ctx, ok := terms[want]
		if !ok {
			t.Errorf("expected term %q to be present", want)
			continue
		}
		if ctx == "" {
			t.Errorf("term %q has empty context", want)
		}
	}

	for _, absent := range []string{"jurisdiction", "liability"} {
		if _, ok := terms[absent]; ok {
			t.Errorf("term %q should be omitted, not empty-stringed", absent)
		}
	}
	if len(terms) != 3 {
		t.Errorf("expected 3 terms, got %d", len(terms))
	}
}

func TestExtractLegalTerms_FirstOccurrenceOnly(t *testing.T) {
	text := "evidence here and more evidence there and yet more evidence"
	terms := ExtractLegalTerms(text)

	ctx, ok := terms["evidence"]
	if !ok {
		t.Fatal("expected evidence term")
	}
	// First occurrence is at offset 0: window clips at the left boundary.
	if !strings.HasPrefix(ctx, "evidence here") {
		t.Errorf("context should start at the first occurrence, got %q", ctx)
	}
}

func TestExtractLegalTerms_CaseInsensitiveOriginalCasePreserved(t *testing.T) {
	text := "The WITNESS appeared in court."
	terms := ExtractLegalTerms(text)

	ctx, ok := terms["witness"]
	if !ok {
		t.Fatal("expected witness term despite upper case")
	}
	if !strings.Contains(ctx, "WITNESS") {
		t.Errorf("context should carry the original casing, got %q", ctx)
	}
}

func TestExtractLegalTerms_ContextWindowClipped(t *testing.T) {
	pad := strings.Repeat("x", 200)
	text := pad + " liability " + pad
	terms := ExtractLegalTerms(text)

	ctx, ok := terms["liability"]
	if !ok {
		t.Fatal("expected liability term")
	}
	// 50 before + 50 after the occurrence start.
	if len(ctx) != 2*contextRadius {
		t.Errorf("expected %d context chars, got %d", 2*contextRadius, len(ctx))
	}
}

func TestExtractLegalTerms_GrowingRunesDoNotPanic(t *testing.T) {
	// U+023A is 2 bytes but lowers to U+2C65, which is 3: the lowered text
	// is longer than the original, so a match offset taken from it would
	// overrun the original without the offset mapping.
	text := strings.Repeat("Ⱥ", 100) + "evidence"
	terms := ExtractLegalTerms(text)

	ctx, ok := terms["evidence"]
	if !ok {
		t.Fatal("expected evidence term")
	}
	if !strings.Contains(ctx, "evidence") {
		t.Errorf("context should contain the term, got %q", ctx)
	}
}

func TestExtractLegalTerms_ShrinkingRunesKeepWindowOnTerm(t *testing.T) {
	// U+212A (Kelvin sign) is 3 bytes but lowers to a 1-byte 'k', shifting
	// lowered offsets left of the original ones.
	text := strings.Repeat("K", 60) + " witness appeared"
	terms := ExtractLegalTerms(text)

	ctx, ok := terms["witness"]
	if !ok {
		t.Fatal("expected witness term")
	}
	if !strings.Contains(ctx, "witness appeared") {
		t.Errorf("window drifted off the term, got %q", ctx)
	}
}

func TestExtractLegalTerms_NoneFound(t *testing.T) {
	terms := ExtractLegalTerms("nothing legal about this sentence")
	if len(terms) != 0 {
		t.Errorf("expected no terms, got %v", terms)
	}
}

func TestSummarize_FiveSentences(t *testing.T) {
	text := "First point. Second point. Third point. Fourth point. Fifth point."
	got := Summarize(text)
	want := "First point.  Second point.  Third point."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSummarize_TwoSentencesVerbatim(t *testing.T) {
	text := "Short document. Just two sentences."
	if got := Summarize(text); got != text {
		t.Errorf("short text should be returned unchanged, got %q", got)
	}
}

func TestSummarize_NoPeriods(t *testing.T) {
	text := "no periods at all in this text"
	if got := Summarize(text); got != text {
		t.Errorf("expected verbatim return, got %q", got)
	}
}

func TestSummarize_SplitsDecimalsToo(t *testing.T) {
	// The literal '.' split is contractual: decimals count as boundaries.
	text := "Damages of 1.5 million. Awarded in full. Case closed. Appeal denied."
	got := Summarize(text)
	if !strings.HasPrefix(got, "Damages of 1. 5 million.") {
		t.Errorf("decimal should be split naively, got %q", got)
	}
}
