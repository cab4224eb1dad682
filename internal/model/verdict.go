package model

import "fmt"

// Verdict is one of the three classes the classifier predicts.
type Verdict string

const (
	VerdictGuilty       Verdict = "Guilty"
	VerdictNotGuilty    Verdict = "Not Guilty"
	VerdictInconclusive Verdict = "Inconclusive"
)

// NumClasses is the size of the frozen classification head.
const NumClasses = 3

// verdictByLabel maps model output classes to verdicts. The order is fixed
// by the trained model and must never be reordered.
var verdictByLabel = [NumClasses]Verdict{
	VerdictGuilty,
	VerdictNotGuilty,
	VerdictInconclusive,
}

// Label returns the integer training label for v.
func (v Verdict) Label() (int, error) {
	for i, known := range verdictByLabel {
		if v == known {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown verdict %q", string(v))
}

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	_, err := v.Label()
	return err == nil
}

// VerdictFromLabel returns the verdict for a model output class.
func VerdictFromLabel(label int) (Verdict, error) {
	if label < 0 || label >= NumClasses {
		return "", fmt.Errorf("label %d out of range [0,%d)", label, NumClasses)
	}
	return verdictByLabel[label], nil
}

// ParseVerdict converts a stored string back into a Verdict.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown verdict %q", s)
	}
	return v, nil
}
