package matcher

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Similarity computes a normalized edit-distance ratio in [0,1] between two
// counterparty names.
//
// Comparison rules: values are trimmed first; two empty strings compare
// equal (1.0); an empty string against a non-empty one scores 0.0. Absent
// canonical fields hold empty strings, so an absent counterparty never
// short-circuits a comparison - it simply scores like an empty name.
func Similarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)

	if a == "" || b == "" {
		if a == b {
			return 1.0
		}
		return 0.0
	}

	if a == b {
		return 1.0
	}

	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}
