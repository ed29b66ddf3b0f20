package matching

import (
	"sort"

	"github.com/google/uuid"
)

// MatchType identifies the strategy that produced a candidate.
type MatchType string

const (
	MatchTypeExactCaseNumber   MatchType = "exact_case_number"
	MatchTypePartialCaseNumber MatchType = "partial_case_number"
	MatchTypeDebtorExact       MatchType = "debtor_exact"
	MatchTypeDebtorFirstLast   MatchType = "debtor_first_last"
	MatchTypeDebtorLastFirst   MatchType = "debtor_last_first"
	MatchTypeDebtorCompany     MatchType = "debtor_company"
)

// MatchCandidate is a proposed link from an inbound query to an existing
// case. Candidates live only for the duration of one resolution call.
type MatchCandidate struct {
	CaseID     uuid.UUID `json:"case_id"`
	CaseNumber string    `json:"case_number"`
	DebtorName string    `json:"debtor_name"`
	Confidence int       `json:"confidence"`
	MatchType  MatchType `json:"match_type"`
	// SimilarityScore is the raw string similarity before the strategy
	// ceiling was applied. Zero for case-number matches.
	SimilarityScore int `json:"similarity_score,omitempty"`
}

// DedupeAndRank collapses candidates that reference the same case, keeping
// for each case the highest-confidence entry (first encountered wins ties),
// sorts the result by confidence descending, and truncates it to limit.
// A limit of zero or less means unbounded.
func DedupeAndRank(candidates []MatchCandidate, limit int) []MatchCandidate {
	deduped := make([]MatchCandidate, 0, len(candidates))
	byCase := make(map[uuid.UUID]int, len(candidates))

	for _, c := range candidates {
		idx, seen := byCase[c.CaseID]
		if !seen {
			byCase[c.CaseID] = len(deduped)
			deduped = append(deduped, c)
			continue
		}
		if c.Confidence > deduped[idx].Confidence {
			deduped[idx] = c
		}
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Confidence > deduped[j].Confidence
	})

	if limit > 0 && len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}
