// Package dataset turns accumulated case records into reproducible
// train/validation splits for classifier retraining, and handles the
// timestamped artifacts those splits are persisted as.
package dataset

import "strings"

// Normalize lowercases text and collapses every whitespace run to a single
// space. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
