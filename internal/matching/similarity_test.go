package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{"identical", "Mustermann", "Mustermann", 100},
		{"identical after case fold", "MUSTERMANN", "mustermann", 100},
		{"identical after trim", "  Max Mustermann ", "Max Mustermann", 100},
		{"both empty", "", "", 0},
		{"whitespace only", "   ", " ", 0},
		{"one empty", "Mustermann", "", 0},
		{"single substitution", "Meier", "Maier", 80},
		{"completely different", "abc", "xyz", 0},
		{"transposed words", "Max Mustermann", "Mustermann, Max", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Similarity(tt.a, tt.b))
		})
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Max Mustermann", "Mustermann, Max"},
		{"Acme Logistik GmbH", "ACME Logistik"},
		{"", "Schulze"},
		{"Meier", "Maier"},
	}

	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]),
			"similarity(%q, %q) must be symmetric", p[0], p[1])
	}
}

func TestSimilarityBounds(t *testing.T) {
	inputs := []string{"", "a", "ä", "Müller & Söhne OHG", "CY-29252-MM", "x y z"}
	for _, a := range inputs {
		for _, b := range inputs {
			s := Similarity(a, b)
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}
	}
}

func TestSimilaritySelfIsAlwaysHundred(t *testing.T) {
	for _, s := range []string{"a", "Max Mustermann", "Müller", "CY-29252-MM"} {
		assert.Equal(t, 100, Similarity(s, s))
	}
}
