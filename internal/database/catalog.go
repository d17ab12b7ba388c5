package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const serviceColumns = `id, code, name, description, category, pricing_mode, unit_price, default_tax_rate, turnaround_hours, is_active, created_at, updated_at`

func scanService(row scanner, i *Service) error {
	return row.Scan(&i.ID, &i.Code, &i.Name, &i.Description, &i.Category, &i.PricingMode,
		&i.UnitPrice, &i.DefaultTaxRate, &i.TurnaroundHours, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
}

const createService = `-- name: CreateService :one
INSERT INTO services (code, name, description, category, pricing_mode, unit_price, default_tax_rate, turnaround_hours)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + serviceColumns

type CreateServiceParams struct {
	Code            string
	Name            string
	Description     pgtype.Text
	Category        string
	PricingMode     string
	UnitPrice       pgtype.Numeric
	DefaultTaxRate  pgtype.Numeric
	TurnaroundHours int32
}

func (q *Queries) CreateService(ctx context.Context, arg CreateServiceParams) (Service, error) {
	row := q.db.QueryRow(ctx, createService, arg.Code, arg.Name, arg.Description, arg.Category,
		arg.PricingMode, arg.UnitPrice, arg.DefaultTaxRate, arg.TurnaroundHours)
	var i Service
	err := scanService(row, &i)
	return i, err
}

const getService = `-- name: GetService :one
SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

func (q *Queries) GetService(ctx context.Context, id uuid.UUID) (Service, error) {
	row := q.db.QueryRow(ctx, getService, id)
	var i Service
	err := scanService(row, &i)
	return i, err
}

const getServiceForUpdate = `-- name: GetServiceForUpdate :one
SELECT ` + serviceColumns + ` FROM services WHERE id = $1 FOR UPDATE`

func (q *Queries) GetServiceForUpdate(ctx context.Context, id uuid.UUID) (Service, error) {
	row := q.db.QueryRow(ctx, getServiceForUpdate, id)
	var i Service
	err := scanService(row, &i)
	return i, err
}

const listServices = `-- name: ListServices :many
SELECT ` + serviceColumns + ` FROM services WHERE is_active = true ORDER BY name`

func (q *Queries) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := q.db.Query(ctx, listServices)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Service
	for rows.Next() {
		var i Service
		if err := scanService(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateService = `-- name: UpdateService :one
UPDATE services
SET name = $2, description = $3, category = $4, pricing_mode = $5, unit_price = $6,
    default_tax_rate = $7, turnaround_hours = $8, is_active = $9, updated_at = now()
WHERE id = $1
RETURNING ` + serviceColumns

type UpdateServiceParams struct {
	ID              uuid.UUID
	Name            string
	Description     pgtype.Text
	Category        string
	PricingMode     string
	UnitPrice       pgtype.Numeric
	DefaultTaxRate  pgtype.Numeric
	TurnaroundHours int32
	IsActive        bool
}

func (q *Queries) UpdateService(ctx context.Context, arg UpdateServiceParams) (Service, error) {
	row := q.db.QueryRow(ctx, updateService, arg.ID, arg.Name, arg.Description, arg.Category,
		arg.PricingMode, arg.UnitPrice, arg.DefaultTaxRate, arg.TurnaroundHours, arg.IsActive)
	var i Service
	err := scanService(row, &i)
	return i, err
}

const createServicePriceHistory = `-- name: CreateServicePriceHistory :one
INSERT INTO service_price_history (service_id, previous_price, new_price, changed_by, reason)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, service_id, previous_price, new_price, changed_by, reason, changed_at`

type CreateServicePriceHistoryParams struct {
	ServiceID     uuid.UUID
	PreviousPrice pgtype.Numeric
	NewPrice      pgtype.Numeric
	ChangedBy     pgtype.UUID
	Reason        pgtype.Text
}

func (q *Queries) CreateServicePriceHistory(ctx context.Context, arg CreateServicePriceHistoryParams) (ServicePriceHistory, error) {
	row := q.db.QueryRow(ctx, createServicePriceHistory, arg.ServiceID, arg.PreviousPrice, arg.NewPrice, arg.ChangedBy, arg.Reason)
	var i ServicePriceHistory
	err := row.Scan(&i.ID, &i.ServiceID, &i.PreviousPrice, &i.NewPrice, &i.ChangedBy, &i.Reason, &i.ChangedAt)
	return i, err
}

const listServicePriceHistory = `-- name: ListServicePriceHistory :many
SELECT id, service_id, previous_price, new_price, changed_by, reason, changed_at
FROM service_price_history
WHERE service_id = $1
ORDER BY changed_at DESC`

func (q *Queries) ListServicePriceHistory(ctx context.Context, serviceID uuid.UUID) ([]ServicePriceHistory, error) {
	rows, err := q.db.Query(ctx, listServicePriceHistory, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ServicePriceHistory
	for rows.Next() {
		var i ServicePriceHistory
		if err := rows.Scan(&i.ID, &i.ServiceID, &i.PreviousPrice, &i.NewPrice, &i.ChangedBy, &i.Reason, &i.ChangedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const promotionColumns = `id, service_id, name, discount_type, discount_value, starts_at, ends_at, is_active, created_by, created_at, updated_at`

const createServicePromotion = `-- name: CreateServicePromotion :one
INSERT INTO service_promotions (service_id, name, discount_type, discount_value, starts_at, ends_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + promotionColumns

type CreateServicePromotionParams struct {
	ServiceID     uuid.UUID
	Name          string
	DiscountType  string
	DiscountValue pgtype.Numeric
	StartsAt      time.Time
	EndsAt        time.Time
	CreatedBy     pgtype.UUID
}

func (q *Queries) CreateServicePromotion(ctx context.Context, arg CreateServicePromotionParams) (ServicePromotion, error) {
	row := q.db.QueryRow(ctx, createServicePromotion, arg.ServiceID, arg.Name, arg.DiscountType,
		arg.DiscountValue, arg.StartsAt, arg.EndsAt, arg.CreatedBy)
	var i ServicePromotion
	err := scanPromotion(row, &i)
	return i, err
}

func scanPromotion(row scanner, i *ServicePromotion) error {
	return row.Scan(&i.ID, &i.ServiceID, &i.Name, &i.DiscountType, &i.DiscountValue,
		&i.StartsAt, &i.EndsAt, &i.IsActive, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
}

const listActivePromotionsForService = `-- name: ListActivePromotionsForService :many
SELECT ` + promotionColumns + `
FROM service_promotions
WHERE service_id = $1 AND is_active = true AND starts_at <= $2 AND ends_at >= $2
ORDER BY starts_at DESC`

type ListActivePromotionsForServiceParams struct {
	ServiceID uuid.UUID
	At        time.Time
}

func (q *Queries) ListActivePromotionsForService(ctx context.Context, arg ListActivePromotionsForServiceParams) ([]ServicePromotion, error) {
	rows, err := q.db.Query(ctx, listActivePromotionsForService, arg.ServiceID, arg.At)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ServicePromotion
	for rows.Next() {
		var i ServicePromotion
		if err := scanPromotion(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listPromotionsForService = `-- name: ListPromotionsForService :many
SELECT ` + promotionColumns + `
FROM service_promotions
WHERE service_id = $1
ORDER BY starts_at DESC`

func (q *Queries) ListPromotionsForService(ctx context.Context, serviceID uuid.UUID) ([]ServicePromotion, error) {
	rows, err := q.db.Query(ctx, listPromotionsForService, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ServicePromotion
	for rows.Next() {
		var i ServicePromotion
		if err := scanPromotion(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deactivateServicePromotion = `-- name: DeactivateServicePromotion :exec
UPDATE service_promotions SET is_active = false, updated_at = now() WHERE id = $1`

func (q *Queries) DeactivateServicePromotion(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deactivateServicePromotion, id)
	return err
}
