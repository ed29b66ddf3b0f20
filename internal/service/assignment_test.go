package service

import (
	"context"
	"errors"
	"testing"

	"casedesk/internal/db"
	"casedesk/internal/matching"
	"casedesk/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommStore struct {
	comms          map[uuid.UUID]*repository.Communication
	transitionErr  error
	lastTransition *repository.TransitionParams
}

func newFakeCommStore(comms ...*repository.Communication) *fakeCommStore {
	store := &fakeCommStore{comms: make(map[uuid.UUID]*repository.Communication)}
	for _, c := range comms {
		store.comms[c.ID] = c
	}
	return store
}

func (f *fakeCommStore) GetCommunication(ctx context.Context, id uuid.UUID) (*repository.Communication, error) {
	comm, ok := f.comms[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *comm
	return &copied, nil
}

func (f *fakeCommStore) ApplyTransition(ctx context.Context, params repository.TransitionParams) (*repository.Communication, error) {
	f.lastTransition = &params
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	comm, ok := f.comms[params.ID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if comm.AssignmentStatus != repository.StatusUnassigned {
		return nil, db.ErrConflict
	}
	comm.AssignmentStatus = params.Status
	comm.MatchedCaseID = params.MatchedCaseID
	comm.MatchConfidence = params.MatchConfidence
	comm.ProcessedBy = &params.Actor
	copied := *comm
	return &copied, nil
}

type fakeResolver struct {
	candidates []matching.MatchCandidate
	err        error
	calls      int
}

func (f *fakeResolver) Resolve(ctx context.Context, caseNumberQuery, debtorNameQuery string) ([]matching.MatchCandidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func unassignedCommunication() *repository.Communication {
	return &repository.Communication{
		ID:               uuid.New(),
		AssignmentStatus: repository.StatusUnassigned,
	}
}

func TestAssignFromUnassigned(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	svc := NewAssignmentService(store, &fakeResolver{}, 85)
	caseID := uuid.New()

	updated, err := svc.Assign(context.Background(), comm.ID, caseID, ManualAssignConfidence, "operator@firm.example", repository.AuditManualAssignment)
	require.NoError(t, err)

	assert.Equal(t, repository.StatusAssigned, updated.AssignmentStatus)
	require.NotNil(t, updated.MatchedCaseID)
	assert.Equal(t, caseID, *updated.MatchedCaseID)
	require.NotNil(t, updated.MatchConfidence)
	assert.Equal(t, 100, *updated.MatchConfidence)

	require.NotNil(t, store.lastTransition)
	assert.Equal(t, repository.AuditManualAssignment, store.lastTransition.AuditAction)
	assert.Equal(t, "operator@firm.example", store.lastTransition.Actor)
}

func TestAssignRejectsNonUnassigned(t *testing.T) {
	comm := unassignedCommunication()
	comm.AssignmentStatus = repository.StatusAssigned
	store := newFakeCommStore(comm)
	svc := NewAssignmentService(store, &fakeResolver{}, 85)

	_, err := svc.Assign(context.Background(), comm.ID, uuid.New(), 100, "operator", repository.AuditManualAssignment)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, store.lastTransition, "guard must reject before writing")
}

func TestAssignMapsConcurrentConflict(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	store.transitionErr = db.ErrConflict
	svc := NewAssignmentService(store, &fakeResolver{}, 85)

	_, err := svc.Assign(context.Background(), comm.ID, uuid.New(), 100, "operator", repository.AuditManualAssignment)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAssignUnknownCommunication(t *testing.T) {
	svc := NewAssignmentService(newFakeCommStore(), &fakeResolver{}, 85)

	_, err := svc.Assign(context.Background(), uuid.New(), uuid.New(), 100, "operator", repository.AuditManualAssignment)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateNewCase(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	svc := NewAssignmentService(store, &fakeResolver{}, 85)

	updated, err := svc.CreateNewCase(context.Background(), comm.ID, "operator@firm.example")
	require.NoError(t, err)

	assert.Equal(t, repository.StatusNewCaseCreated, updated.AssignmentStatus)
	assert.Nil(t, updated.MatchedCaseID)
	require.NotNil(t, store.lastTransition)
	assert.Equal(t, repository.AuditNewCaseCreated, store.lastTransition.AuditAction)
}

func TestCreateNewCaseRejectsNonUnassigned(t *testing.T) {
	comm := unassignedCommunication()
	comm.AssignmentStatus = repository.StatusNewCaseCreated
	store := newFakeCommStore(comm)
	svc := NewAssignmentService(store, &fakeResolver{}, 85)

	_, err := svc.CreateNewCase(context.Background(), comm.ID, "operator")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecideAndAssignAboveThreshold(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	caseID := uuid.New()
	resolver := &fakeResolver{candidates: []matching.MatchCandidate{
		{CaseID: caseID, Confidence: 100, MatchType: matching.MatchTypeExactCaseNumber},
	}}
	svc := NewAssignmentService(store, resolver, 85)

	updated, candidates, err := svc.DecideAndAssign(context.Background(), comm.ID, "CY-29252-MM", "", SystemActor)
	require.NoError(t, err)

	assert.Equal(t, repository.StatusAssigned, updated.AssignmentStatus)
	require.NotNil(t, updated.MatchedCaseID)
	assert.Equal(t, caseID, *updated.MatchedCaseID)
	require.Len(t, candidates, 1)
	require.NotNil(t, store.lastTransition)
	assert.Equal(t, repository.AuditAutoAssignment, store.lastTransition.AuditAction)
	assert.Equal(t, SystemActor, store.lastTransition.Actor)
}

func TestDecideAndAssignBelowThresholdLeavesUnassigned(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	resolver := &fakeResolver{candidates: []matching.MatchCandidate{
		{CaseID: uuid.New(), Confidence: 80, MatchType: matching.MatchTypeDebtorLastFirst},
	}}
	svc := NewAssignmentService(store, resolver, 85)

	updated, candidates, err := svc.DecideAndAssign(context.Background(), comm.ID, "", "Max Mustermann", SystemActor)
	require.NoError(t, err)

	assert.Equal(t, repository.StatusUnassigned, updated.AssignmentStatus)
	assert.Len(t, candidates, 1)
	assert.Nil(t, store.lastTransition, "below-threshold decision must not write")
}

func TestDecideAndAssignAtThresholdAssigns(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	resolver := &fakeResolver{candidates: []matching.MatchCandidate{
		{CaseID: uuid.New(), Confidence: 85, MatchType: matching.MatchTypePartialCaseNumber},
	}}
	svc := NewAssignmentService(store, resolver, 85)

	updated, _, err := svc.DecideAndAssign(context.Background(), comm.ID, "CY-29252-MM", "", SystemActor)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusAssigned, updated.AssignmentStatus)
}

func TestDecideAndAssignNoCandidates(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	svc := NewAssignmentService(store, &fakeResolver{}, 85)

	updated, candidates, err := svc.DecideAndAssign(context.Background(), comm.ID, "", "Niemand Bekannt", SystemActor)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusUnassigned, updated.AssignmentStatus)
	assert.Empty(t, candidates)
}

func TestDecideAndAssignPropagatesInvalidQuery(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	resolver := &fakeResolver{err: ErrInvalidQuery}
	svc := NewAssignmentService(store, resolver, 85)

	_, _, err := svc.DecideAndAssign(context.Background(), comm.ID, "", "", SystemActor)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Nil(t, store.lastTransition)
}

func TestDecideAndAssignStoreErrorLeavesUnassigned(t *testing.T) {
	comm := unassignedCommunication()
	store := newFakeCommStore(comm)
	storeErr := errors.New("connection refused")
	resolver := &fakeResolver{err: storeErr}
	svc := NewAssignmentService(store, resolver, 85)

	_, _, err := svc.DecideAndAssign(context.Background(), comm.ID, "CY-29252-MM", "", SystemActor)
	assert.ErrorIs(t, err, storeErr)
	assert.Nil(t, store.lastTransition, "resolution failure must never assign")
}

func TestDecideAndAssignRejectsProcessedCommunication(t *testing.T) {
	comm := unassignedCommunication()
	comm.AssignmentStatus = repository.StatusAssigned
	store := newFakeCommStore(comm)
	resolver := &fakeResolver{}
	svc := NewAssignmentService(store, resolver, 85)

	_, _, err := svc.DecideAndAssign(context.Background(), comm.ID, "CY-29252-MM", "", SystemActor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, resolver.calls, "no resolution should run for a processed communication")
}
