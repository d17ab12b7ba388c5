package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const supplyColumns = `id, code, name, unit, min_stock, current_stock, is_active, notes, created_at, updated_at`

func scanSupply(row scanner, i *Supply) error {
	return row.Scan(&i.ID, &i.Code, &i.Name, &i.Unit, &i.MinStock, &i.CurrentStock,
		&i.IsActive, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
}

const createSupply = `-- name: CreateSupply :one
INSERT INTO supplies (code, name, unit, min_stock, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + supplyColumns

type CreateSupplyParams struct {
	Code     string
	Name     string
	Unit     string
	MinStock pgtype.Numeric
	Notes    pgtype.Text
}

func (q *Queries) CreateSupply(ctx context.Context, arg CreateSupplyParams) (Supply, error) {
	row := q.db.QueryRow(ctx, createSupply, arg.Code, arg.Name, arg.Unit, arg.MinStock, arg.Notes)
	var i Supply
	err := scanSupply(row, &i)
	return i, err
}

const getSupply = `-- name: GetSupply :one
SELECT ` + supplyColumns + ` FROM supplies WHERE id = $1`

func (q *Queries) GetSupply(ctx context.Context, id uuid.UUID) (Supply, error) {
	row := q.db.QueryRow(ctx, getSupply, id)
	var i Supply
	err := scanSupply(row, &i)
	return i, err
}

const getSupplyForUpdate = `-- name: GetSupplyForUpdate :one
SELECT ` + supplyColumns + ` FROM supplies WHERE id = $1 FOR UPDATE`

// GetSupplyForUpdate takes an exclusive row lock so concurrent stock
// mutations against the same supply serialize.
func (q *Queries) GetSupplyForUpdate(ctx context.Context, id uuid.UUID) (Supply, error) {
	row := q.db.QueryRow(ctx, getSupplyForUpdate, id)
	var i Supply
	err := scanSupply(row, &i)
	return i, err
}

const listSupplies = `-- name: ListSupplies :many
SELECT ` + supplyColumns + ` FROM supplies WHERE is_active = true ORDER BY name`

func (q *Queries) ListSupplies(ctx context.Context) ([]Supply, error) {
	rows, err := q.db.Query(ctx, listSupplies)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Supply
	for rows.Next() {
		var i Supply
		if err := scanSupply(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listLowStockSupplies = `-- name: ListLowStockSupplies :many
SELECT ` + supplyColumns + `
FROM supplies
WHERE is_active = true AND current_stock < min_stock
ORDER BY name`

func (q *Queries) ListLowStockSupplies(ctx context.Context) ([]Supply, error) {
	rows, err := q.db.Query(ctx, listLowStockSupplies)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Supply
	for rows.Next() {
		var i Supply
		if err := scanSupply(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateSupply = `-- name: UpdateSupply :one
UPDATE supplies
SET name = $2, unit = $3, min_stock = $4, is_active = $5, notes = $6, updated_at = now()
WHERE id = $1
RETURNING ` + supplyColumns

type UpdateSupplyParams struct {
	ID       uuid.UUID
	Name     string
	Unit     string
	MinStock pgtype.Numeric
	IsActive bool
	Notes    pgtype.Text
}

func (q *Queries) UpdateSupply(ctx context.Context, arg UpdateSupplyParams) (Supply, error) {
	row := q.db.QueryRow(ctx, updateSupply, arg.ID, arg.Name, arg.Unit, arg.MinStock, arg.IsActive, arg.Notes)
	var i Supply
	err := scanSupply(row, &i)
	return i, err
}

const updateSupplyStock = `-- name: UpdateSupplyStock :one
UPDATE supplies
SET current_stock = $2, updated_at = now()
WHERE id = $1
RETURNING ` + supplyColumns

type UpdateSupplyStockParams struct {
	ID           uuid.UUID
	CurrentStock pgtype.Numeric
}

func (q *Queries) UpdateSupplyStock(ctx context.Context, arg UpdateSupplyStockParams) (Supply, error) {
	row := q.db.QueryRow(ctx, updateSupplyStock, arg.ID, arg.CurrentStock)
	var i Supply
	err := scanSupply(row, &i)
	return i, err
}

// --- Inventory movements ---

const inventoryMovementColumns = `id, supply_id, movement_type, quantity, unit_cost, concept, notes,
occurred_at, created_by, created_at, updated_at`

func scanInventoryMovement(row scanner, i *InventoryMovement) error {
	return row.Scan(&i.ID, &i.SupplyID, &i.MovementType, &i.Quantity, &i.UnitCost, &i.Concept,
		&i.Notes, &i.OccurredAt, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
}

const createInventoryMovement = `-- name: CreateInventoryMovement :one
INSERT INTO inventory_movements (supply_id, movement_type, quantity, unit_cost, concept, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + inventoryMovementColumns

type CreateInventoryMovementParams struct {
	SupplyID     uuid.UUID
	MovementType string
	Quantity     pgtype.Numeric
	UnitCost     pgtype.Numeric
	Concept      string
	Notes        pgtype.Text
	CreatedBy    pgtype.UUID
}

func (q *Queries) CreateInventoryMovement(ctx context.Context, arg CreateInventoryMovementParams) (InventoryMovement, error) {
	row := q.db.QueryRow(ctx, createInventoryMovement, arg.SupplyID, arg.MovementType, arg.Quantity,
		arg.UnitCost, arg.Concept, arg.Notes, arg.CreatedBy)
	var i InventoryMovement
	err := scanInventoryMovement(row, &i)
	return i, err
}

const getInventoryMovement = `-- name: GetInventoryMovement :one
SELECT ` + inventoryMovementColumns + ` FROM inventory_movements WHERE id = $1`

func (q *Queries) GetInventoryMovement(ctx context.Context, id uuid.UUID) (InventoryMovement, error) {
	row := q.db.QueryRow(ctx, getInventoryMovement, id)
	var i InventoryMovement
	err := scanInventoryMovement(row, &i)
	return i, err
}

const getInventoryMovementForUpdate = `-- name: GetInventoryMovementForUpdate :one
SELECT ` + inventoryMovementColumns + ` FROM inventory_movements WHERE id = $1 FOR UPDATE`

func (q *Queries) GetInventoryMovementForUpdate(ctx context.Context, id uuid.UUID) (InventoryMovement, error) {
	row := q.db.QueryRow(ctx, getInventoryMovementForUpdate, id)
	var i InventoryMovement
	err := scanInventoryMovement(row, &i)
	return i, err
}

const listInventoryMovements = `-- name: ListInventoryMovements :many
SELECT ` + inventoryMovementColumns + `
FROM inventory_movements
WHERE supply_id = $1
ORDER BY occurred_at DESC`

func (q *Queries) ListInventoryMovements(ctx context.Context, supplyID uuid.UUID) ([]InventoryMovement, error) {
	rows, err := q.db.Query(ctx, listInventoryMovements, supplyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryMovement
	for rows.Next() {
		var i InventoryMovement
		if err := scanInventoryMovement(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateInventoryMovement = `-- name: UpdateInventoryMovement :one
UPDATE inventory_movements
SET supply_id = $2, movement_type = $3, quantity = $4, unit_cost = $5, concept = $6, notes = $7, updated_at = now()
WHERE id = $1
RETURNING ` + inventoryMovementColumns

type UpdateInventoryMovementParams struct {
	ID           uuid.UUID
	SupplyID     uuid.UUID
	MovementType string
	Quantity     pgtype.Numeric
	UnitCost     pgtype.Numeric
	Concept      string
	Notes        pgtype.Text
}

func (q *Queries) UpdateInventoryMovement(ctx context.Context, arg UpdateInventoryMovementParams) (InventoryMovement, error) {
	row := q.db.QueryRow(ctx, updateInventoryMovement, arg.ID, arg.SupplyID, arg.MovementType,
		arg.Quantity, arg.UnitCost, arg.Concept, arg.Notes)
	var i InventoryMovement
	err := scanInventoryMovement(row, &i)
	return i, err
}

const deleteInventoryMovement = `-- name: DeleteInventoryMovement :exec
DELETE FROM inventory_movements WHERE id = $1`

func (q *Queries) DeleteInventoryMovement(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteInventoryMovement, id)
	return err
}
