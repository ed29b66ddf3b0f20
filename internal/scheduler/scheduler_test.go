package scheduler

import (
	"context"
	"errors"
	"testing"

	"casedesk/internal/config"
	"casedesk/internal/matching"
	"casedesk/internal/repository"
	"casedesk/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweepStore struct {
	pending []repository.Communication
	err     error
	limit   int32
}

func (f *fakeSweepStore) ListPendingWithHints(_ context.Context, limit int32) ([]repository.Communication, error) {
	f.limit = limit
	return f.pending, f.err
}

type fakeAutoAssigner struct {
	errs    map[uuid.UUID]error
	decided []uuid.UUID
	queries map[uuid.UUID][2]string
}

func (f *fakeAutoAssigner) DecideAndAssign(_ context.Context, communicationID uuid.UUID, caseNumberQuery, debtorNameQuery, actor string) (*repository.Communication, []matching.MatchCandidate, error) {
	f.decided = append(f.decided, communicationID)
	if f.queries == nil {
		f.queries = make(map[uuid.UUID][2]string)
	}
	f.queries[communicationID] = [2]string{caseNumberQuery, debtorNameQuery}
	if err := f.errs[communicationID]; err != nil {
		return nil, nil, err
	}
	return &repository.Communication{
		ID:               communicationID,
		AssignmentStatus: repository.StatusAssigned,
	}, nil, nil
}

func pendingComm(caseHint, nameHint string) repository.Communication {
	comm := repository.Communication{
		ID:               uuid.New(),
		AssignmentStatus: repository.StatusUnassigned,
	}
	if caseHint != "" {
		comm.CaseNumberHint = &caseHint
	}
	if nameHint != "" {
		comm.DebtorNameHint = &nameHint
	}
	return comm
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		EnableSweep:    true,
		SweepCronSpec:  "0 */15 * * * *",
		SweepBatchSize: 50,
	}
}

func TestRunSweepProcessesPendingBatch(t *testing.T) {
	first := pendingComm("CY-29252-AB", "")
	second := pendingComm("", "Max Mustermann")
	store := &fakeSweepStore{pending: []repository.Communication{first, second}}
	assigner := &fakeAutoAssigner{}
	s := NewScheduler(store, assigner, testSchedulerConfig())

	require.NoError(t, s.RunSweepNow(context.Background()))

	assert.Equal(t, int32(50), store.limit)
	require.Len(t, assigner.decided, 2)
	assert.Equal(t, [2]string{"CY-29252-AB", ""}, assigner.queries[first.ID])
	assert.Equal(t, [2]string{"", "Max Mustermann"}, assigner.queries[second.ID])
}

func TestRunSweepSkipsExpectedFailures(t *testing.T) {
	raced := pendingComm("CY-29252-AB", "")
	hintless := pendingComm("", "")
	healthy := pendingComm("", "Max Mustermann")
	store := &fakeSweepStore{pending: []repository.Communication{raced, hintless, healthy}}
	assigner := &fakeAutoAssigner{
		errs: map[uuid.UUID]error{
			raced.ID:    service.ErrInvalidTransition,
			hintless.ID: service.ErrInvalidQuery,
		},
	}
	s := NewScheduler(store, assigner, testSchedulerConfig())

	require.NoError(t, s.RunSweepNow(context.Background()))

	// Expected per-item failures never abort the sweep.
	assert.Len(t, assigner.decided, 3)
}

func TestRunSweepPropagatesStoreError(t *testing.T) {
	store := &fakeSweepStore{err: errors.New("connection refused")}
	s := NewScheduler(store, &fakeAutoAssigner{}, testSchedulerConfig())

	err := s.RunSweepNow(context.Background())
	require.Error(t, err)
}

func TestRunSweepContinuesAfterUnexpectedError(t *testing.T) {
	broken := pendingComm("CY-29252-AB", "")
	healthy := pendingComm("", "Max Mustermann")
	store := &fakeSweepStore{pending: []repository.Communication{broken, healthy}}
	assigner := &fakeAutoAssigner{
		errs: map[uuid.UUID]error{broken.ID: errors.New("write failed")},
	}
	s := NewScheduler(store, assigner, testSchedulerConfig())

	require.NoError(t, s.RunSweepNow(context.Background()))
	assert.Len(t, assigner.decided, 2)
}
