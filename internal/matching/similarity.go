// Package matching implements the pure matching core: string similarity,
// name normalization, case-number format checks, and candidate ranking.
package matching

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a 0-100 score expressing how close two strings are.
// Comparison is case-insensitive and ignores leading/trailing whitespace.
// Identical strings score 100; two empty strings score 0.
func Similarity(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		if a == "" {
			return 0
		}
		return 100
	}

	maxLen := utf8.RuneCountInString(a)
	if lb := utf8.RuneCountInString(b); lb > maxLen {
		maxLen = lb
	}

	distance := levenshtein.ComputeDistance(a, b)
	score := int(math.Round(float64(maxLen-distance) / float64(maxLen) * 100))

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
