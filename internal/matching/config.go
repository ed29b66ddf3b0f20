package matching

// StrategyWeights caps the confidence each debtor-name strategy may report,
// regardless of how similar the strings turn out to be. The defaults are
// carried over from the production tuning and are deliberately not
// re-derived; first/last and last/first share one ceiling.
type StrategyWeights struct {
	Exact     int
	FirstLast int
	LastFirst int
	Company   int
}

// DefaultStrategyWeights is the standard ceiling set.
var DefaultStrategyWeights = StrategyWeights{
	Exact:     95,
	FirstLast: 80,
	LastFirst: 80,
	Company:   70,
}

const (
	// ExactCaseNumberConfidence is reported for a verbatim case-number hit.
	ExactCaseNumberConfidence = 100
	// PartialCaseNumberConfidence is reported for a prefix-group fallback hit.
	PartialCaseNumberConfidence = 85
	// PartialCaseNumberFetchLimit bounds how many recent cases the prefix
	// fallback inspects.
	PartialCaseNumberFetchLimit = 5
)
