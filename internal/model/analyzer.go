package model

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// legalTerms is the fixed vocabulary scanned during document analysis, in
// the order entries are reported.
var legalTerms = []string{"evidence", "testimony", "witness", "jurisdiction", "liability"}

// contextRadius is how many characters of surrounding text are captured
// around a term's first occurrence.
const contextRadius = 50

// DocumentAnalysis is the structured result of analyzing one document.
type DocumentAnalysis struct {
	Verdict       Verdict           `json:"verdict"`
	Confidence    float64           `json:"confidence"`
	KeyLegalTerms map[string]string `json:"key_legal_terms"`
	Summary       string            `json:"analysis_summary"`
}

// Predictor is the classification dependency of the Analyzer.
type Predictor interface {
	Predict(ctx context.Context, text string) (Verdict, float64, error)
}

// Analyzer composes the classifier with key-term extraction and a naive
// leading-sentence summary. It has no persistence side effects.
type Analyzer struct {
	clf Predictor
}

// NewAnalyzer creates an Analyzer backed by clf.
func NewAnalyzer(clf Predictor) *Analyzer {
	return &Analyzer{clf: clf}
}

// Analyze classifies the full document text and attaches term contexts and
// a summary.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*DocumentAnalysis, error) {
	verdict, confidence, err := a.clf.Predict(ctx, text)
	if err != nil {
		return nil, err
	}

	return &DocumentAnalysis{
		Verdict:       verdict,
		Confidence:    confidence,
		KeyLegalTerms: ExtractLegalTerms(text),
		Summary:       Summarize(text),
	}, nil
}

// ExtractLegalTerms scans text case-insensitively for the fixed vocabulary
// and returns a context window around each term's first occurrence. Absent
// terms are omitted; repeat occurrences beyond the first are ignored.
func ExtractLegalTerms(text string) map[string]string {
	// Lowercasing changes byte lengths for some runes, so matches are
	// located in the lowered text and mapped back to offsets in the
	// original before slicing.
	lowered := make([]byte, 0, len(text))
	offsets := make([]int, 0, len(text))
	var buf [utf8.UTFMax]byte
	for i, r := range text {
		n := utf8.EncodeRune(buf[:], unicode.ToLower(r))
		for j := 0; j < n; j++ {
			offsets = append(offsets, i)
		}
		lowered = append(lowered, buf[:n]...)
	}
	loweredText := string(lowered)

	terms := make(map[string]string)
	for _, term := range legalTerms {
		start := strings.Index(loweredText, term)
		if start < 0 {
			continue
		}
		origin := offsets[start]
		lo := origin - contextRadius
		if lo < 0 {
			lo = 0
		}
		hi := origin + contextRadius
		if hi > len(text) {
			hi = len(text)
		}
		terms[term] = text[lo:hi]
	}
	return terms
}

// Summarize returns the first three period-delimited fragments of text, or
// the text unchanged when there are three or fewer. The split is a literal
// '.' split with no sentence-boundary disambiguation, so abbreviations and
// decimals split too.
func Summarize(text string) string {
	fragments := strings.Split(text, ".")
	if len(fragments) > 3 {
		return strings.Join(fragments[:3], ". ") + "."
	}
	return text
}
