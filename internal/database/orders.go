package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, folio, customer_id, status, wash_status, dry_status, ironing_status,
received_at, promised_at, delivered_at, notes, subtotal, tax_amount, total, paid_amount, balance,
created_by, created_at, updated_at`

func scanOrder(row scanner, i *Order) error {
	return row.Scan(&i.ID, &i.Folio, &i.CustomerID, &i.Status, &i.WashStatus, &i.DryStatus,
		&i.IroningStatus, &i.ReceivedAt, &i.PromisedAt, &i.DeliveredAt, &i.Notes, &i.Subtotal,
		&i.TaxAmount, &i.Total, &i.PaidAmount, &i.Balance, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (folio, customer_id, promised_at, notes, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Folio      string
	CustomerID pgtype.UUID
	PromisedAt pgtype.Timestamptz
	Notes      pgtype.Text
	CreatedBy  pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.Folio, arg.CustomerID, arg.PromisedAt, arg.Notes, arg.CreatedBy)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, id)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`

type ListOrdersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		var i Order
		if err := scanOrder(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateOrderDerived = `-- name: UpdateOrderDerived :one
UPDATE orders
SET subtotal = $2, tax_amount = $3, total = $4, paid_amount = $5, balance = $6,
    status = $7, wash_status = $8, dry_status = $9, ironing_status = $10, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderDerivedParams struct {
	ID            uuid.UUID
	Subtotal      pgtype.Numeric
	TaxAmount     pgtype.Numeric
	Total         pgtype.Numeric
	PaidAmount    pgtype.Numeric
	Balance       pgtype.Numeric
	Status        string
	WashStatus    string
	DryStatus     string
	IroningStatus string
}

func (q *Queries) UpdateOrderDerived(ctx context.Context, arg UpdateOrderDerivedParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderDerived, arg.ID, arg.Subtotal, arg.TaxAmount, arg.Total,
		arg.PaidAmount, arg.Balance, arg.Status, arg.WashStatus, arg.DryStatus, arg.IroningStatus)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const updateOrderAreaStatus = `-- name: UpdateOrderAreaStatus :one
UPDATE orders
SET wash_status = $2, dry_status = $3, ironing_status = $4, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderAreaStatusParams struct {
	ID            uuid.UUID
	WashStatus    string
	DryStatus     string
	IroningStatus string
}

func (q *Queries) UpdateOrderAreaStatus(ctx context.Context, arg UpdateOrderAreaStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderAreaStatus, arg.ID, arg.WashStatus, arg.DryStatus, arg.IroningStatus)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const markOrderDelivered = `-- name: MarkOrderDelivered :one
UPDATE orders
SET status = $2, delivered_at = $3, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type MarkOrderDeliveredParams struct {
	ID          uuid.UUID
	Status      string
	DeliveredAt pgtype.Timestamptz
}

func (q *Queries) MarkOrderDelivered(ctx context.Context, arg MarkOrderDeliveredParams) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderDelivered, arg.ID, arg.Status, arg.DeliveredAt)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

const markOrderCancelled = `-- name: MarkOrderCancelled :one
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type MarkOrderCancelledParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) MarkOrderCancelled(ctx context.Context, arg MarkOrderCancelledParams) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderCancelled, arg.ID, arg.Status)
	var i Order
	err := scanOrder(row, &i)
	return i, err
}

// --- Order items ---

const orderItemColumns = `id, order_id, service_id, description, pricing_mode, quantity, unit_price,
tax_rate, subtotal, tax_amount, total, created_at, updated_at`

func scanOrderItem(row scanner, i *OrderItem) error {
	return row.Scan(&i.ID, &i.OrderID, &i.ServiceID, &i.Description, &i.PricingMode, &i.Quantity,
		&i.UnitPrice, &i.TaxRate, &i.Subtotal, &i.TaxAmount, &i.Total, &i.CreatedAt, &i.UpdatedAt)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, service_id, description, pricing_mode, quantity, unit_price, tax_rate, subtotal, tax_amount, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID     uuid.UUID
	ServiceID   uuid.UUID
	Description string
	PricingMode string
	Quantity    pgtype.Numeric
	UnitPrice   pgtype.Numeric
	TaxRate     pgtype.Numeric
	Subtotal    pgtype.Numeric
	TaxAmount   pgtype.Numeric
	Total       pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.ServiceID, arg.Description,
		arg.PricingMode, arg.Quantity, arg.UnitPrice, arg.TaxRate, arg.Subtotal, arg.TaxAmount, arg.Total)
	var i OrderItem
	err := scanOrderItem(row, &i)
	return i, err
}

const getOrderItem = `-- name: GetOrderItem :one
SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1`

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItem, id)
	var i OrderItem
	err := scanOrderItem(row, &i)
	return i, err
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at`

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := scanOrderItem(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateOrderItem = `-- name: UpdateOrderItem :one
UPDATE order_items
SET description = $2, quantity = $3, unit_price = $4, tax_rate = $5,
    subtotal = $6, tax_amount = $7, total = $8, updated_at = now()
WHERE id = $1
RETURNING ` + orderItemColumns

type UpdateOrderItemParams struct {
	ID          uuid.UUID
	Description string
	Quantity    pgtype.Numeric
	UnitPrice   pgtype.Numeric
	TaxRate     pgtype.Numeric
	Subtotal    pgtype.Numeric
	TaxAmount   pgtype.Numeric
	Total       pgtype.Numeric
}

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItem, arg.ID, arg.Description, arg.Quantity, arg.UnitPrice,
		arg.TaxRate, arg.Subtotal, arg.TaxAmount, arg.Total)
	var i OrderItem
	err := scanOrderItem(row, &i)
	return i, err
}

const deleteOrderItem = `-- name: DeleteOrderItem :exec
DELETE FROM order_items WHERE id = $1`

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItem, id)
	return err
}

const sumOrderItems = `-- name: SumOrderItems :one
SELECT COALESCE(SUM(subtotal), 0)::numeric   AS subtotal,
       COALESCE(SUM(tax_amount), 0)::numeric AS tax_amount,
       COALESCE(SUM(total), 0)::numeric      AS total
FROM order_items
WHERE order_id = $1`

type SumOrderItemsRow struct {
	Subtotal  pgtype.Numeric
	TaxAmount pgtype.Numeric
	Total     pgtype.Numeric
}

func (q *Queries) SumOrderItems(ctx context.Context, orderID uuid.UUID) (SumOrderItemsRow, error) {
	row := q.db.QueryRow(ctx, sumOrderItems, orderID)
	var i SumOrderItemsRow
	err := row.Scan(&i.Subtotal, &i.TaxAmount, &i.Total)
	return i, err
}

const countOrderItemsByCategory = `-- name: CountOrderItemsByCategory :one
SELECT COUNT(*)
FROM order_items oi
JOIN services s ON s.id = oi.service_id
WHERE oi.order_id = $1 AND s.category = $2`

type CountOrderItemsByCategoryParams struct {
	OrderID  uuid.UUID
	Category string
}

func (q *Queries) CountOrderItemsByCategory(ctx context.Context, arg CountOrderItemsByCategoryParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOrderItemsByCategory, arg.OrderID, arg.Category)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const dailyRevenue = `-- name: DailyRevenue :many
SELECT p.method, COALESCE(SUM(p.amount), 0)::numeric AS total
FROM payments p
WHERE p.status = 'APPLIED' AND p.paid_at >= $1 AND p.paid_at < $2
GROUP BY p.method
ORDER BY p.method`

type DailyRevenueParams struct {
	From time.Time
	To   time.Time
}

type DailyRevenueRow struct {
	Method string
	Total  pgtype.Numeric
}

func (q *Queries) DailyRevenue(ctx context.Context, arg DailyRevenueParams) ([]DailyRevenueRow, error) {
	rows, err := q.db.Query(ctx, dailyRevenue, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyRevenueRow
	for rows.Next() {
		var i DailyRevenueRow
		if err := rows.Scan(&i.Method, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
