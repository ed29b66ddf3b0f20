package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditAction tags the kind of action recorded against a communication.
type AuditAction string

const (
	AuditManualAssignment AuditAction = "manual_assignment"
	AuditAutoAssignment   AuditAction = "auto_assignment"
	AuditNewCaseCreated   AuditAction = "new_case_created"
)

// AuditEntry is an immutable log record of one action taken against a
// communication. Entries are append-only and never mutated.
type AuditEntry struct {
	ID              uuid.UUID   `json:"id"`
	CommunicationID uuid.UUID   `json:"communication_id"`
	Action          AuditAction `json:"action"`
	Actor           string      `json:"actor"`
	Detail          *string     `json:"detail,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// ListByCommunication returns a communication's audit trail, newest first.
func (r *AuditRepository) ListByCommunication(ctx context.Context, communicationID uuid.UUID) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, communication_id, action, actor, detail, created_at
		FROM audit_entries
		WHERE communication_id = $1
		ORDER BY created_at DESC`,
		communicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			entry  AuditEntry
			detail pgtype.Text
		)
		if err := rows.Scan(
			&entry.ID, &entry.CommunicationID, &entry.Action,
			&entry.Actor, &detail, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list audit entries: %w", err)
		}
		if detail.Valid {
			entry.Detail = &detail.String
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
