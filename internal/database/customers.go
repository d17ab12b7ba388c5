package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createCustomer = `-- name: CreateCustomer :one
INSERT INTO customers (full_name, phone, email, notes)
VALUES ($1, $2, $3, $4)
RETURNING id, full_name, phone, email, notes, created_at, updated_at`

type CreateCustomerParams struct {
	FullName string
	Phone    pgtype.Text
	Email    pgtype.Text
	Notes    pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, createCustomer, arg.FullName, arg.Phone, arg.Email, arg.Notes)
	var i Customer
	err := row.Scan(&i.ID, &i.FullName, &i.Phone, &i.Email, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getCustomer = `-- name: GetCustomer :one
SELECT id, full_name, phone, email, notes, created_at, updated_at
FROM customers
WHERE id = $1`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomer, id)
	var i Customer
	err := row.Scan(&i.ID, &i.FullName, &i.Phone, &i.Email, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listCustomers = `-- name: ListCustomers :many
SELECT id, full_name, phone, email, notes, created_at, updated_at
FROM customers
ORDER BY full_name`

func (q *Queries) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Customer
	for rows.Next() {
		var i Customer
		if err := rows.Scan(&i.ID, &i.FullName, &i.Phone, &i.Email, &i.Notes, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateCustomer = `-- name: UpdateCustomer :one
UPDATE customers
SET full_name = $2, phone = $3, email = $4, notes = $5, updated_at = now()
WHERE id = $1
RETURNING id, full_name, phone, email, notes, created_at, updated_at`

type UpdateCustomerParams struct {
	ID       uuid.UUID
	FullName string
	Phone    pgtype.Text
	Email    pgtype.Text
	Notes    pgtype.Text
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, updateCustomer, arg.ID, arg.FullName, arg.Phone, arg.Email, arg.Notes)
	var i Customer
	err := row.Scan(&i.ID, &i.FullName, &i.Phone, &i.Email, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const deleteCustomer = `-- name: DeleteCustomer :exec
DELETE FROM customers WHERE id = $1`

func (q *Queries) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCustomer, id)
	return err
}
