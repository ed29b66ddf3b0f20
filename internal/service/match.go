package service

import (
	"context"
	"errors"
	"strings"

	"casedesk/internal/config"
	"casedesk/internal/db"
	"casedesk/internal/logger"
	"casedesk/internal/matching"
	"casedesk/internal/repository"
)

type caseFinder interface {
	FindCaseByNumber(ctx context.Context, number string) (*repository.Case, error)
	FindCasesByNumberPrefix(ctx context.Context, prefix string, limit int32) ([]repository.Case, error)
}

type debtorFinder interface {
	FindDebtorsByNameOrCompany(ctx context.Context, term string, mode repository.MatchMode, field repository.MatchField) ([]repository.DebtorCase, error)
}

// MatchService resolves unstructured identifying strings from an inbound
// communication to candidate cases with confidence scores.
type MatchService struct {
	cases   caseFinder
	debtors debtorFinder
	format  *matching.CaseNumberFormat
	rules   matching.NameRules
	weights matching.StrategyWeights
	maxHits int
}

// NewMatchService creates a match service from the configured matching
// options. It fails only when the case-number pattern does not compile.
func NewMatchService(cases caseFinder, debtors debtorFinder, cfg config.MatchingConfig) (*MatchService, error) {
	format, err := matching.NewCaseNumberFormat(cfg.CaseNumberPattern)
	if err != nil {
		return nil, err
	}

	rules := matching.NameRules{
		CompanySuffixes: cfg.CompanySuffixes,
		PersonalTitles:  cfg.PersonalTitles,
	}

	return &MatchService{
		cases:   cases,
		debtors: debtors,
		format:  format,
		rules:   rules,
		weights: matching.DefaultStrategyWeights,
		maxHits: cfg.MaxCandidates,
	}, nil
}

// IsValidCaseNumberFormat reports whether query has the structural shape
// of a case number. Exposed for upstream input validation.
func (s *MatchService) IsValidCaseNumberFormat(query string) bool {
	return s.format.IsValid(query)
}

// ResolveCaseNumber resolves a case-number query. An exact hit is
// authoritative and returns alone with confidence 100; otherwise, when the
// query is structurally valid, recent cases in the same prefix group that
// contain the query's stem are returned at confidence 85. An empty result
// is a normal outcome, not an error.
func (s *MatchService) ResolveCaseNumber(ctx context.Context, query string) ([]matching.MatchCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	kase, err := s.cases.FindCaseByNumber(ctx, query)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if kase != nil {
		return []matching.MatchCandidate{{
			CaseID:     kase.ID,
			CaseNumber: kase.CaseNumber,
			DebtorName: kase.DebtorName,
			Confidence: matching.ExactCaseNumberConfidence,
			MatchType:  matching.MatchTypeExactCaseNumber,
		}}, nil
	}

	if !s.format.IsValid(query) {
		return nil, nil
	}

	recent, err := s.cases.FindCasesByNumberPrefix(ctx, s.format.PrefixGroup(query), matching.PartialCaseNumberFetchLimit)
	if err != nil {
		return nil, err
	}

	stem := strings.ToLower(s.format.Stem(query))
	var candidates []matching.MatchCandidate
	for _, kase := range recent {
		if !strings.Contains(strings.ToLower(kase.CaseNumber), stem) {
			continue
		}
		candidates = append(candidates, matching.MatchCandidate{
			CaseID:     kase.ID,
			CaseNumber: kase.CaseNumber,
			DebtorName: kase.DebtorName,
			Confidence: matching.PartialCaseNumberConfidence,
			MatchType:  matching.MatchTypePartialCaseNumber,
		})
	}
	return candidates, nil
}

// nameStrategy is one (strategy, search term) pair for debtor-name lookup.
type nameStrategy struct {
	matchType matching.MatchType
	term      string
	mode      repository.MatchMode
	field     repository.MatchField
	ceiling   int
}

// ResolveDebtorName resolves a free-text debtor-name query by running the
// exact, first/last, last/first, and company strategies against the store,
// scoring every hit with string similarity capped by the strategy ceiling,
// then deduplicating by case and ranking by confidence.
func (s *MatchService) ResolveDebtorName(ctx context.Context, query string) ([]matching.MatchCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	strategies := []nameStrategy{
		{matching.MatchTypeDebtorExact, query, repository.ModeExact, repository.FieldNameOrCompany, s.weights.Exact},
		{matching.MatchTypeDebtorFirstLast, matching.FirstLast(query), repository.ModeSubstring, repository.FieldName, s.weights.FirstLast},
		{matching.MatchTypeDebtorLastFirst, matching.LastFirst(query), repository.ModeSubstring, repository.FieldName, s.weights.LastFirst},
		{matching.MatchTypeDebtorCompany, s.rules.CompanyCandidate(query), repository.ModeSubstring, repository.FieldCompany, s.weights.Company},
	}

	var candidates []matching.MatchCandidate
	for _, strat := range strategies {
		if strat.term == "" {
			continue
		}

		hits, err := s.debtors.FindDebtorsByNameOrCompany(ctx, strat.term, strat.mode, strat.field)
		if err != nil {
			return nil, err
		}

		for _, hit := range hits {
			// A debtor without a case cannot be assigned to.
			if hit.Case == nil {
				continue
			}

			similarity := matching.Similarity(strat.term, hit.Case.DebtorName)
			confidence := similarity
			if confidence > strat.ceiling {
				confidence = strat.ceiling
			}

			candidates = append(candidates, matching.MatchCandidate{
				CaseID:          hit.Case.ID,
				CaseNumber:      hit.Case.CaseNumber,
				DebtorName:      hit.Case.DebtorName,
				Confidence:      confidence,
				MatchType:       strat.matchType,
				SimilarityScore: similarity,
			})
		}
	}

	return matching.DedupeAndRank(candidates, s.maxHits), nil
}

// Resolve runs the matcher selected by which queries are present. A
// non-empty case-number query is authoritative and suppresses debtor-name
// matching entirely; both queries empty is a caller error.
func (s *MatchService) Resolve(ctx context.Context, caseNumberQuery, debtorNameQuery string) ([]matching.MatchCandidate, error) {
	caseNumberQuery = strings.TrimSpace(caseNumberQuery)
	debtorNameQuery = strings.TrimSpace(debtorNameQuery)

	if caseNumberQuery == "" && debtorNameQuery == "" {
		return nil, ErrInvalidQuery
	}

	if caseNumberQuery != "" {
		candidates, err := s.ResolveCaseNumber(ctx, caseNumberQuery)
		if err != nil {
			return nil, err
		}
		logger.Debug().
			Str("case_number", caseNumberQuery).
			Int("candidates", len(candidates)).
			Msg("resolved by case number")
		return candidates, nil
	}

	candidates, err := s.ResolveDebtorName(ctx, debtorNameQuery)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("debtor_name", debtorNameQuery).
		Int("candidates", len(candidates)).
		Msg("resolved by debtor name")
	return candidates, nil
}
