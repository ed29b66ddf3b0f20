package service

import (
	"context"
	"errors"
	"fmt"

	"casedesk/internal/db"
	"casedesk/internal/logger"
	"casedesk/internal/matching"
	"casedesk/internal/repository"

	"github.com/google/uuid"
)

// ManualAssignConfidence is recorded for operator assignments; 100 is
// reserved for humans so automatic matches can never outrank them.
const ManualAssignConfidence = 100

// SystemActor tags transitions performed by the automatic policy.
const SystemActor = "system"

type communicationStore interface {
	GetCommunication(ctx context.Context, id uuid.UUID) (*repository.Communication, error)
	ApplyTransition(ctx context.Context, params repository.TransitionParams) (*repository.Communication, error)
}

type candidateResolver interface {
	Resolve(ctx context.Context, caseNumberQuery, debtorNameQuery string) ([]matching.MatchCandidate, error)
}

// AssignmentService owns the communication assignment state machine and
// the automatic-assignment policy on top of it.
type AssignmentService struct {
	comms     communicationStore
	matcher   candidateResolver
	threshold int
}

func NewAssignmentService(comms communicationStore, matcher candidateResolver, autoAssignThreshold int) *AssignmentService {
	return &AssignmentService{
		comms:     comms,
		matcher:   matcher,
		threshold: autoAssignThreshold,
	}
}

// Assign transitions a communication from unassigned to assigned, records
// the matched case and confidence, and appends the audit entry named by
// action. Valid from unassigned only.
func (s *AssignmentService) Assign(ctx context.Context, communicationID, caseID uuid.UUID, confidence int, actor string, action repository.AuditAction) (*repository.Communication, error) {
	comm, err := s.comms.GetCommunication(ctx, communicationID)
	if err != nil {
		return nil, err
	}
	if comm.AssignmentStatus != repository.StatusUnassigned {
		return nil, ErrInvalidTransition
	}

	detail := fmt.Sprintf("assigned to case %s with confidence %d", caseID, confidence)
	updated, err := s.comms.ApplyTransition(ctx, repository.TransitionParams{
		ID:              communicationID,
		Status:          repository.StatusAssigned,
		MatchedCaseID:   &caseID,
		MatchConfidence: &confidence,
		Actor:           actor,
		AuditAction:     action,
		AuditDetail:     &detail,
	})
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	logger.Info().
		Str("communication_id", communicationID.String()).
		Str("case_id", caseID.String()).
		Int("confidence", confidence).
		Str("actor", actor).
		Str("action", string(action)).
		Msg("communication assigned")
	return updated, nil
}

// CreateNewCase records that a new case will be opened for the
// communication. The case record itself is created by an external
// collaborator; this transition only fixes the communication's
// disposition. Valid from unassigned only.
func (s *AssignmentService) CreateNewCase(ctx context.Context, communicationID uuid.UUID, actor string) (*repository.Communication, error) {
	comm, err := s.comms.GetCommunication(ctx, communicationID)
	if err != nil {
		return nil, err
	}
	if comm.AssignmentStatus != repository.StatusUnassigned {
		return nil, ErrInvalidTransition
	}

	updated, err := s.comms.ApplyTransition(ctx, repository.TransitionParams{
		ID:          communicationID,
		Status:      repository.StatusNewCaseCreated,
		Actor:       actor,
		AuditAction: repository.AuditNewCaseCreated,
	})
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	logger.Info().
		Str("communication_id", communicationID.String()).
		Str("actor", actor).
		Msg("communication marked for new case")
	return updated, nil
}

// DecideAndAssign runs the matcher over the given queries and applies the
// automatic-assignment policy: the best candidate is assigned when its
// confidence reaches the configured threshold, otherwise the communication
// is left unassigned for manual review. The candidate list is returned
// either way so callers can surface it to reviewers.
func (s *AssignmentService) DecideAndAssign(ctx context.Context, communicationID uuid.UUID, caseNumberQuery, debtorNameQuery, actor string) (*repository.Communication, []matching.MatchCandidate, error) {
	comm, err := s.comms.GetCommunication(ctx, communicationID)
	if err != nil {
		return nil, nil, err
	}
	if comm.AssignmentStatus != repository.StatusUnassigned {
		return nil, nil, ErrInvalidTransition
	}

	candidates, err := s.matcher.Resolve(ctx, caseNumberQuery, debtorNameQuery)
	if err != nil {
		// Never auto-assign on ambiguous or store-error conditions; the
		// communication stays unassigned.
		return nil, nil, err
	}

	if len(candidates) == 0 || candidates[0].Confidence < s.threshold {
		best := 0
		if len(candidates) > 0 {
			best = candidates[0].Confidence
		}
		logger.Info().
			Str("communication_id", communicationID.String()).
			Int("best_confidence", best).
			Int("threshold", s.threshold).
			Msg("no candidate above auto-assign threshold, left for manual review")
		return comm, candidates, nil
	}

	best := candidates[0]
	updated, err := s.Assign(ctx, communicationID, best.CaseID, best.Confidence, actor, repository.AuditAutoAssignment)
	if err != nil {
		return nil, nil, err
	}
	return updated, candidates, nil
}
