package matching

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultCaseNumberPattern matches structured case numbers such as
// "CY-29252-MM": a two-letter prefix group, five digits, two letters.
const DefaultCaseNumberPattern = `^[A-Za-z]{2}-\d{5}-[A-Za-z]{2}$`

// caseNumberStemLength is how much of a query must appear in a candidate
// case number for the pattern fallback to accept it. Eight characters
// cover the default shape's prefix group and full digit block
// ("CY-29252"). Custom patterns with shorter case numbers fall back to
// the whole query as the stem.
const caseNumberStemLength = 8

// CaseNumberFormat validates case-number strings against the configured
// structural pattern and derives lookup keys from them.
type CaseNumberFormat struct {
	re *regexp.Regexp
}

// NewCaseNumberFormat compiles the given pattern. Pass
// DefaultCaseNumberPattern unless the deployment uses a custom scheme.
func NewCaseNumberFormat(pattern string) (*CaseNumberFormat, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid case number pattern %q: %w", pattern, err)
	}
	return &CaseNumberFormat{re: re}, nil
}

// IsValid reports whether query has the structural shape of a case number.
func (f *CaseNumberFormat) IsValid(query string) bool {
	return f.re.MatchString(query)
}

// PrefixGroup returns the prefix group of a structurally valid query,
// dash included ("CY-"), or the empty string for anything else. The group
// is everything up to and including the first dash; a valid query under a
// custom pattern without a dash is its own prefix group.
func (f *CaseNumberFormat) PrefixGroup(query string) string {
	if !f.IsValid(query) {
		return ""
	}
	if i := strings.IndexByte(query, '-'); i >= 0 {
		return query[:i+1]
	}
	return query
}

// Stem returns the leading part of a query used for containment checks
// against candidate case numbers. Queries shorter than the stem length
// are used whole.
func (f *CaseNumberFormat) Stem(query string) string {
	runes := []rune(query)
	if len(runes) < caseNumberStemLength {
		return query
	}
	return string(runes[:caseNumberStemLength])
}
