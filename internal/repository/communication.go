package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casedesk/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentStatus is the disposition of an inbound communication.
type AssignmentStatus string

const (
	StatusUnassigned     AssignmentStatus = "unassigned"
	StatusAssigned       AssignmentStatus = "assigned"
	StatusNewCaseCreated AssignmentStatus = "new_case_created"
)

// Communication is an inbound message awaiting or having received a case
// assignment.
type Communication struct {
	ID               uuid.UUID        `json:"id"`
	CaseNumberHint   *string          `json:"case_number_hint,omitempty"`
	DebtorNameHint   *string          `json:"debtor_name_hint,omitempty"`
	AssignmentStatus AssignmentStatus `json:"assignment_status"`
	MatchedCaseID    *uuid.UUID       `json:"matched_case_id,omitempty"`
	MatchConfidence  *int             `json:"match_confidence,omitempty"`
	ProcessedBy      *string          `json:"processed_by,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
}

// CreateCommunicationRequest carries the raw identifying hints captured by
// the ingestion pipeline.
type CreateCommunicationRequest struct {
	CaseNumberHint *string
	DebtorNameHint *string
}

// ListCommunicationsParams filters and pages the communication list.
type ListCommunicationsParams struct {
	Status AssignmentStatus // empty means all statuses
	Limit  int32
	Offset int32
}

// TransitionParams describes one assignment-state transition together with
// the audit entry recorded alongside it.
type TransitionParams struct {
	ID              uuid.UUID
	Status          AssignmentStatus
	MatchedCaseID   *uuid.UUID
	MatchConfidence *int
	Actor           string
	AuditAction     AuditAction
	AuditDetail     *string
}

type CommunicationRepository struct {
	pool *pgxpool.Pool
}

func NewCommunicationRepository(pool *pgxpool.Pool) *CommunicationRepository {
	return &CommunicationRepository{pool: pool}
}

const communicationColumns = `id, case_number_hint, debtor_name_hint, assignment_status,
	matched_case_id, match_confidence, processed_by, created_at, processed_at`

// CreateCommunication inserts a new communication in unassigned state.
func (r *CommunicationRepository) CreateCommunication(ctx context.Context, req CreateCommunicationRequest) (*Communication, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO communications (id, case_number_hint, debtor_name_hint, assignment_status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+communicationColumns,
		uuid.New(), textOrNil(req.CaseNumberHint), textOrNil(req.DebtorNameHint), StatusUnassigned,
	)

	comm, err := scanCommunication(row)
	if err != nil {
		return nil, fmt.Errorf("create communication: %w", err)
	}
	return comm, nil
}

// GetCommunication retrieves a communication by ID.
func (r *CommunicationRepository) GetCommunication(ctx context.Context, id uuid.UUID) (*Communication, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+communicationColumns+`
		FROM communications
		WHERE id = $1`,
		id,
	)

	comm, err := scanCommunication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("get communication: %w", err)
	}
	return comm, nil
}

// ListCommunications returns a page of communications, newest first.
func (r *CommunicationRepository) ListCommunications(ctx context.Context, params ListCommunicationsParams) ([]Communication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+communicationColumns+`
		FROM communications
		WHERE ($1 = '' OR assignment_status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		string(params.Status), params.Limit, params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	defer rows.Close()

	var comms []Communication
	for rows.Next() {
		comm, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("list communications: %w", err)
		}
		comms = append(comms, *comm)
	}
	return comms, rows.Err()
}

// CountCommunications counts communications, optionally filtered by status.
func (r *CommunicationRepository) CountCommunications(ctx context.Context, status AssignmentStatus) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM communications
		WHERE ($1 = '' OR assignment_status = $1)`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count communications: %w", err)
	}
	return count, nil
}

// ListPendingWithHints returns unassigned communications that carry at
// least one identifying hint, oldest first, for the assignment sweep.
func (r *CommunicationRepository) ListPendingWithHints(ctx context.Context, limit int32) ([]Communication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+communicationColumns+`
		FROM communications
		WHERE assignment_status = $1
		  AND (COALESCE(case_number_hint, '') <> '' OR COALESCE(debtor_name_hint, '') <> '')
		ORDER BY created_at ASC
		LIMIT $2`,
		StatusUnassigned, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending communications: %w", err)
	}
	defer rows.Close()

	var comms []Communication
	for rows.Next() {
		comm, err := scanCommunication(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending communications: %w", err)
		}
		comms = append(comms, *comm)
	}
	return comms, rows.Err()
}

// ApplyTransition updates the communication's assignment fields and appends
// the corresponding audit entry in a single transaction. The update is
// guarded on the row still being unassigned so a concurrent assignment
// surfaces as db.ErrConflict instead of being overwritten.
func (r *CommunicationRepository) ApplyTransition(ctx context.Context, params TransitionParams) (*Communication, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE communications
		SET assignment_status = $2,
		    matched_case_id = $3,
		    match_confidence = $4,
		    processed_by = $5,
		    processed_at = now()
		WHERE id = $1 AND assignment_status = $6
		RETURNING `+communicationColumns,
		params.ID, params.Status, uuidOrNil(params.MatchedCaseID),
		intOrNil(params.MatchConfidence), params.Actor, StatusUnassigned,
	)

	comm, err := scanCommunication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyGuardFailure(ctx, params.ID)
		}
		return nil, fmt.Errorf("apply transition: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_entries (id, communication_id, action, actor, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), params.ID, params.AuditAction, params.Actor, textOrNil(params.AuditDetail),
	)
	if err != nil {
		return nil, fmt.Errorf("apply transition: append audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	return comm, nil
}

// classifyGuardFailure distinguishes a missing row from one that already
// left the unassigned state.
func (r *CommunicationRepository) classifyGuardFailure(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM communications WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	if !exists {
		return db.ErrNotFound
	}
	return db.ErrConflict
}

func scanCommunication(row pgx.Row) (*Communication, error) {
	var (
		comm        Communication
		caseHint    pgtype.Text
		nameHint    pgtype.Text
		matchedCase pgtype.UUID
		confidence  pgtype.Int4
		processedBy pgtype.Text
		processedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&comm.ID, &caseHint, &nameHint, &comm.AssignmentStatus,
		&matchedCase, &confidence, &processedBy, &comm.CreatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	if caseHint.Valid {
		comm.CaseNumberHint = &caseHint.String
	}
	if nameHint.Valid {
		comm.DebtorNameHint = &nameHint.String
	}
	if matchedCase.Valid {
		id := uuid.UUID(matchedCase.Bytes)
		comm.MatchedCaseID = &id
	}
	if confidence.Valid {
		value := int(confidence.Int32)
		comm.MatchConfidence = &value
	}
	if processedBy.Valid {
		comm.ProcessedBy = &processedBy.String
	}
	if processedAt.Valid {
		comm.ProcessedAt = &processedAt.Time
	}
	return &comm, nil
}

// Helper functions to convert optional values to pgtype

func textOrNil(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func uuidOrNil(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func intOrNil(i *int) pgtype.Int4 {
	if i == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*i), Valid: true}
}
