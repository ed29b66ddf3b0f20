package matching

import "strings"

// NameRules configures the heuristics used to derive alternate
// representations of a debtor name.
type NameRules struct {
	// CompanySuffixes are legal-entity markers; a name containing one is
	// always treated as a company name.
	CompanySuffixes []string
	// PersonalTitles are salutation markers; a name containing one is
	// never treated as a company name.
	PersonalTitles []string
}

// DefaultNameRules covers the common German and English legal forms and
// salutations seen on inbound correspondence.
var DefaultNameRules = NameRules{
	CompanySuffixes: []string{"GmbH", "AG", "KG", "OHG", "UG", "e.V.", "Ltd", "Inc", "Corp"},
	PersonalTitles:  []string{"Herr", "Frau", "Dr.", "Prof.", "Mr.", "Mrs.", "Ms."},
}

// FirstLast reduces a multi-token name to "<first> <last>". Names with
// fewer than two tokens are returned unchanged.
func FirstLast(name string) string {
	tokens := strings.Fields(name)
	if len(tokens) < 2 {
		return name
	}
	return tokens[0] + " " + tokens[len(tokens)-1]
}

// LastFirst reorders a multi-token name to "<last>, <first>". Names with
// fewer than two tokens are returned unchanged.
func LastFirst(name string) string {
	tokens := strings.Fields(name)
	if len(tokens) < 2 {
		return name
	}
	return tokens[len(tokens)-1] + ", " + tokens[0]
}

// CompanyCandidate returns the name unchanged when it looks like a company
// name, or the empty string when it does not. A name qualifies when it
// carries a legal-entity suffix, or when it has more than two tokens and
// no personal title (multi-token untitled names tend to be organizations).
func (r NameRules) CompanyCandidate(name string) string {
	lower := strings.ToLower(name)

	for _, suffix := range r.CompanySuffixes {
		if strings.Contains(lower, strings.ToLower(suffix)) {
			return name
		}
	}

	if len(strings.Fields(name)) > 2 {
		for _, title := range r.PersonalTitles {
			if strings.Contains(lower, strings.ToLower(title)) {
				return ""
			}
		}
		return name
	}

	return ""
}
