package database

import (
	"context"

	"github.com/google/uuid"
)

const createUser = `-- name: CreateUser :one
INSERT INTO users (full_name, email, password_hash, role)
VALUES ($1, $2, $3, $4)
RETURNING id, full_name, email, password_hash, role, is_active, created_at, updated_at`

type CreateUserParams struct {
	FullName     string
	Email        string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.FullName, arg.Email, arg.PasswordHash, arg.Role)
	var i User
	err := row.Scan(&i.ID, &i.FullName, &i.Email, &i.PasswordHash, &i.Role, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, full_name, email, password_hash, role, is_active, created_at, updated_at
FROM users
WHERE email = $1 AND is_active = true`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.FullName, &i.Email, &i.PasswordHash, &i.Role, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getUser = `-- name: GetUser :one
SELECT id, full_name, email, password_hash, role, is_active, created_at, updated_at
FROM users
WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUser, id)
	var i User
	err := row.Scan(&i.ID, &i.FullName, &i.Email, &i.PasswordHash, &i.Role, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listUsers = `-- name: ListUsers :many
SELECT id, full_name, email, password_hash, role, is_active, created_at, updated_at
FROM users
ORDER BY full_name`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.FullName, &i.Email, &i.PasswordHash, &i.Role, &i.IsActive, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
