package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, cash_session_id, captured_by, method, status, amount,
paid_at, reference, notes, created_at, updated_at`

func scanPayment(row scanner, i *Payment) error {
	return row.Scan(&i.ID, &i.OrderID, &i.CashSessionID, &i.CapturedBy, &i.Method, &i.Status,
		&i.Amount, &i.PaidAt, &i.Reference, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (order_id, cash_session_id, captured_by, method, status, amount, paid_at, reference, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID       uuid.UUID
	CashSessionID pgtype.UUID
	CapturedBy    pgtype.UUID
	Method        string
	Status        string
	Amount        pgtype.Numeric
	PaidAt        time.Time
	Reference     pgtype.Text
	Notes         pgtype.Text
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment, arg.OrderID, arg.CashSessionID, arg.CapturedBy,
		arg.Method, arg.Status, arg.Amount, arg.PaidAt, arg.Reference, arg.Notes)
	var i Payment
	err := scanPayment(row, &i)
	return i, err
}

const getPayment = `-- name: GetPayment :one
SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, getPayment, id)
	var i Payment
	err := scanPayment(row, &i)
	return i, err
}

const listPaymentsByOrder = `-- name: ListPaymentsByOrder :many
SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY paid_at DESC`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := scanPayment(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updatePayment = `-- name: UpdatePayment :one
UPDATE payments
SET method = $2, amount = $3, reference = $4, notes = $5, updated_at = now()
WHERE id = $1
RETURNING ` + paymentColumns

type UpdatePaymentParams struct {
	ID        uuid.UUID
	Method    string
	Amount    pgtype.Numeric
	Reference pgtype.Text
	Notes     pgtype.Text
}

func (q *Queries) UpdatePayment(ctx context.Context, arg UpdatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, updatePayment, arg.ID, arg.Method, arg.Amount, arg.Reference, arg.Notes)
	var i Payment
	err := scanPayment(row, &i)
	return i, err
}

const voidPayment = `-- name: VoidPayment :one
UPDATE payments
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + paymentColumns

type VoidPaymentParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) VoidPayment(ctx context.Context, arg VoidPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, voidPayment, arg.ID, arg.Status)
	var i Payment
	err := scanPayment(row, &i)
	return i, err
}

const sumAppliedPayments = `-- name: SumAppliedPayments :one
SELECT COALESCE(SUM(amount), 0)::numeric
FROM payments
WHERE order_id = $1 AND status = 'APPLIED'`

func (q *Queries) SumAppliedPayments(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumAppliedPayments, orderID)
	var total pgtype.Numeric
	err := row.Scan(&total)
	return total, err
}

const sumSessionPaymentsByMethod = `-- name: SumSessionPaymentsByMethod :many
SELECT method, COALESCE(SUM(amount), 0)::numeric AS total
FROM payments
WHERE cash_session_id = $1 AND status = 'APPLIED'
GROUP BY method`

type SumSessionPaymentsByMethodRow struct {
	Method string
	Total  pgtype.Numeric
}

func (q *Queries) SumSessionPaymentsByMethod(ctx context.Context, cashSessionID uuid.UUID) ([]SumSessionPaymentsByMethodRow, error) {
	rows, err := q.db.Query(ctx, sumSessionPaymentsByMethod, cashSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SumSessionPaymentsByMethodRow
	for rows.Next() {
		var i SumSessionPaymentsByMethodRow
		if err := rows.Scan(&i.Method, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
