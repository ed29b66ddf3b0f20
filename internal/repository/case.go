// Package repository provides pgx-backed access to the record store.
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

// Case represents a collection case. DebtorName is the resolved display
// name of the case's debtor: the company name when one is set, the person
// name otherwise.
type Case struct {
	ID         uuid.UUID `json:"id"`
	CaseNumber string    `json:"case_number"`
	DebtorName string    `json:"debtor_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Debtor represents the party a case is held against.
type Debtor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Company   *string   `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DebtorCase pairs a debtor with its most recently created case. Case is
// nil for debtors that have no case yet.
type DebtorCase struct {
	Debtor Debtor
	Case   *Case
}

// MatchMode selects how a debtor search term is compared.
type MatchMode string

const (
	ModeExact     MatchMode = "exact"
	ModeSubstring MatchMode = "substring"
)

// MatchField selects which debtor fields a search term is compared against.
type MatchField string

const (
	FieldNameOrCompany MatchField = "name_or_company"
	FieldName          MatchField = "name"
	FieldCompany       MatchField = "company"
)

// debtorSearchLimit bounds raw store hits per strategy before scoring.
const debtorSearchLimit = 25

type CaseRepository struct {
	pool *pgxpool.Pool
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

const caseColumns = `c.id, c.case_number, COALESCE(NULLIF(d.company, ''), d.name), c.created_at`

// FindCaseByNumber looks up a case by its exact, case-sensitive number.
func (r *CaseRepository) FindCaseByNumber(ctx context.Context, number string) (*Case, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+caseColumns+`
		FROM cases c
		JOIN debtors d ON d.id = c.debtor_id
		WHERE c.case_number = $1`,
		number,
	)

	kase, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("find case by number: %w", err)
	}
	return kase, nil
}

// FindCasesByNumberPrefix returns the most recently created cases whose
// number starts with prefix, newest first.
func (r *CaseRepository) FindCasesByNumberPrefix(ctx context.Context, prefix string, limit int32) ([]Case, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases c
		JOIN debtors d ON d.id = c.debtor_id
		WHERE c.case_number ILIKE $1 || '%'
		ORDER BY c.created_at DESC
		LIMIT $2`,
		prefix, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find cases by number prefix: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		kase, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("find cases by number prefix: %w", err)
		}
		cases = append(cases, *kase)
	}
	return cases, rows.Err()
}

// FindDebtorsByNameOrCompany searches debtors by name and/or company and
// joins each hit to its most recent case.
func (r *CaseRepository) FindDebtorsByNameOrCompany(ctx context.Context, term string, mode MatchMode, field MatchField) ([]DebtorCase, error) {
	var condition string

	switch {
	case mode == ModeExact:
		condition = `(d.name = $1 OR COALESCE(d.company, '') = $1)`
	case field == FieldCompany:
		condition = `d.company ILIKE '%' || $1 || '%'`
	default:
		condition = `d.name ILIKE '%' || $1 || '%'`
	}

	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.name, d.company, d.created_at,
		       c.id, c.case_number, COALESCE(NULLIF(d.company, ''), d.name), c.created_at
		FROM debtors d
		LEFT JOIN LATERAL (
			SELECT id, case_number, created_at
			FROM cases
			WHERE debtor_id = d.id
			ORDER BY created_at DESC
			LIMIT 1
		) c ON true
		WHERE `+condition+`
		LIMIT $2`,
		term, debtorSearchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("find debtors by %s/%s: %w", mode, field, err)
	}
	defer rows.Close()

	var results []DebtorCase
	for rows.Next() {
		var (
			debtor      Debtor
			company     pgtype.Text
			caseID      pgtype.UUID
			caseNumber  pgtype.Text
			displayName pgtype.Text
			caseCreated pgtype.Timestamptz
		)
		if err := rows.Scan(
			&debtor.ID, &debtor.Name, &company, &debtor.CreatedAt,
			&caseID, &caseNumber, &displayName, &caseCreated,
		); err != nil {
			return nil, fmt.Errorf("find debtors by %s/%s: %w", mode, field, err)
		}
		if company.Valid {
			debtor.Company = &company.String
		}

		dc := DebtorCase{Debtor: debtor}
		if caseID.Valid {
			dc.Case = &Case{
				ID:         uuid.UUID(caseID.Bytes),
				CaseNumber: caseNumber.String,
				DebtorName: displayName.String,
				CreatedAt:  caseCreated.Time,
			}
		}
		results = append(results, dc)
	}
	return results, rows.Err()
}

func scanCase(row pgx.Row) (*Case, error) {
	var kase Case
	if err := row.Scan(&kase.ID, &kase.CaseNumber, &kase.DebtorName, &kase.CreatedAt); err != nil {
		return nil, err
	}
	return &kase, nil
}
