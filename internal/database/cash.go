package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cashSessionColumns = `id, user_id, shift, opened_at, opening_amount, closed_at, closing_amount,
notes, created_at, updated_at`

func scanCashSession(row scanner, i *CashSession) error {
	return row.Scan(&i.ID, &i.UserID, &i.Shift, &i.OpenedAt, &i.OpeningAmount, &i.ClosedAt,
		&i.ClosingAmount, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
}

const createCashSession = `-- name: CreateCashSession :one
INSERT INTO cash_sessions (user_id, shift, opening_amount, notes)
VALUES ($1, $2, $3, $4)
RETURNING ` + cashSessionColumns

type CreateCashSessionParams struct {
	UserID        uuid.UUID
	Shift         string
	OpeningAmount pgtype.Numeric
	Notes         pgtype.Text
}

func (q *Queries) CreateCashSession(ctx context.Context, arg CreateCashSessionParams) (CashSession, error) {
	row := q.db.QueryRow(ctx, createCashSession, arg.UserID, arg.Shift, arg.OpeningAmount, arg.Notes)
	var i CashSession
	err := scanCashSession(row, &i)
	return i, err
}

const getCashSession = `-- name: GetCashSession :one
SELECT ` + cashSessionColumns + ` FROM cash_sessions WHERE id = $1`

func (q *Queries) GetCashSession(ctx context.Context, id uuid.UUID) (CashSession, error) {
	row := q.db.QueryRow(ctx, getCashSession, id)
	var i CashSession
	err := scanCashSession(row, &i)
	return i, err
}

const getCashSessionForUpdate = `-- name: GetCashSessionForUpdate :one
SELECT ` + cashSessionColumns + ` FROM cash_sessions WHERE id = $1 FOR UPDATE`

func (q *Queries) GetCashSessionForUpdate(ctx context.Context, id uuid.UUID) (CashSession, error) {
	row := q.db.QueryRow(ctx, getCashSessionForUpdate, id)
	var i CashSession
	err := scanCashSession(row, &i)
	return i, err
}

const getOpenCashSessionByUser = `-- name: GetOpenCashSessionByUser :one
SELECT ` + cashSessionColumns + `
FROM cash_sessions
WHERE user_id = $1 AND closed_at IS NULL
ORDER BY opened_at DESC
LIMIT 1`

func (q *Queries) GetOpenCashSessionByUser(ctx context.Context, userID uuid.UUID) (CashSession, error) {
	row := q.db.QueryRow(ctx, getOpenCashSessionByUser, userID)
	var i CashSession
	err := scanCashSession(row, &i)
	return i, err
}

const listCashSessions = `-- name: ListCashSessions :many
SELECT ` + cashSessionColumns + ` FROM cash_sessions ORDER BY opened_at DESC LIMIT $1 OFFSET $2`

type ListCashSessionsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListCashSessions(ctx context.Context, arg ListCashSessionsParams) ([]CashSession, error) {
	rows, err := q.db.Query(ctx, listCashSessions, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CashSession
	for rows.Next() {
		var i CashSession
		if err := scanCashSession(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const closeCashSession = `-- name: CloseCashSession :one
UPDATE cash_sessions
SET closing_amount = $2, closed_at = $3, notes = $4, updated_at = now()
WHERE id = $1 AND closed_at IS NULL
RETURNING ` + cashSessionColumns

type CloseCashSessionParams struct {
	ID            uuid.UUID
	ClosingAmount pgtype.Numeric
	ClosedAt      time.Time
	Notes         pgtype.Text
}

func (q *Queries) CloseCashSession(ctx context.Context, arg CloseCashSessionParams) (CashSession, error) {
	row := q.db.QueryRow(ctx, closeCashSession, arg.ID, arg.ClosingAmount, arg.ClosedAt, arg.Notes)
	var i CashSession
	err := scanCashSession(row, &i)
	return i, err
}

// --- Cash movements ---

const cashMovementColumns = `id, cash_session_id, movement_type, amount, concept, notes, occurred_at, created_by, created_at`

func scanCashMovement(row scanner, i *CashMovement) error {
	return row.Scan(&i.ID, &i.CashSessionID, &i.MovementType, &i.Amount, &i.Concept, &i.Notes,
		&i.OccurredAt, &i.CreatedBy, &i.CreatedAt)
}

const createCashMovement = `-- name: CreateCashMovement :one
INSERT INTO cash_movements (cash_session_id, movement_type, amount, concept, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + cashMovementColumns

type CreateCashMovementParams struct {
	CashSessionID uuid.UUID
	MovementType  string
	Amount        pgtype.Numeric
	Concept       string
	Notes         pgtype.Text
	CreatedBy     pgtype.UUID
}

func (q *Queries) CreateCashMovement(ctx context.Context, arg CreateCashMovementParams) (CashMovement, error) {
	row := q.db.QueryRow(ctx, createCashMovement, arg.CashSessionID, arg.MovementType, arg.Amount,
		arg.Concept, arg.Notes, arg.CreatedBy)
	var i CashMovement
	err := scanCashMovement(row, &i)
	return i, err
}

const listCashMovements = `-- name: ListCashMovements :many
SELECT ` + cashMovementColumns + `
FROM cash_movements
WHERE cash_session_id = $1
ORDER BY occurred_at DESC`

func (q *Queries) ListCashMovements(ctx context.Context, cashSessionID uuid.UUID) ([]CashMovement, error) {
	rows, err := q.db.Query(ctx, listCashMovements, cashSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CashMovement
	for rows.Next() {
		var i CashMovement
		if err := scanCashMovement(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const sumCashMovementsByType = `-- name: SumCashMovementsByType :many
SELECT movement_type, COALESCE(SUM(amount), 0)::numeric AS total
FROM cash_movements
WHERE cash_session_id = $1
GROUP BY movement_type`

type SumCashMovementsByTypeRow struct {
	MovementType string
	Total        pgtype.Numeric
}

func (q *Queries) SumCashMovementsByType(ctx context.Context, cashSessionID uuid.UUID) ([]SumCashMovementsByTypeRow, error) {
	rows, err := q.db.Query(ctx, sumCashMovementsByType, cashSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SumCashMovementsByTypeRow
	for rows.Next() {
		var i SumCashMovementsByTypeRow
		if err := rows.Scan(&i.MovementType, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
