package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the stock service.
var (
	ErrSupplyNotFound       = errors.New("supply not found")
	ErrMovementNotFound     = errors.New("inventory movement not found")
	ErrInvalidStockQuantity = errors.New("quantity must be > 0")
	ErrInvalidStockMovement = errors.New("invalid inventory movement type")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidMinStock      = errors.New("min_stock must be >= 0")
	ErrInvalidUnitCost      = errors.New("unit_cost must be >= 0")
)

// StockStore defines the DB methods needed by the stock service.
type StockStore interface {
	CreateSupply(ctx context.Context, arg database.CreateSupplyParams) (database.Supply, error)
	GetSupply(ctx context.Context, id uuid.UUID) (database.Supply, error)
	GetSupplyForUpdate(ctx context.Context, id uuid.UUID) (database.Supply, error)
	UpdateSupply(ctx context.Context, arg database.UpdateSupplyParams) (database.Supply, error)
	UpdateSupplyStock(ctx context.Context, arg database.UpdateSupplyStockParams) (database.Supply, error)
	CreateInventoryMovement(ctx context.Context, arg database.CreateInventoryMovementParams) (database.InventoryMovement, error)
	GetInventoryMovementForUpdate(ctx context.Context, id uuid.UUID) (database.InventoryMovement, error)
	UpdateInventoryMovement(ctx context.Context, arg database.UpdateInventoryMovementParams) (database.InventoryMovement, error)
	DeleteInventoryMovement(ctx context.Context, id uuid.UUID) error
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// NewStockStore creates a StockStore from a DBTX (pool or tx).
type NewStockStore func(db database.DBTX) StockStore

// StockService owns the supply stock ledger. Every stock change flows
// through a movement row; current_stock is only ever written under a
// row lock after re-reading it, so concurrent movements against the
// same supply serialize and stock can never go negative.
type StockService struct {
	pool     TxBeginner
	newStore NewStockStore
}

// NewStockService creates a new StockService.
func NewStockService(pool TxBeginner, newStore NewStockStore) *StockService {
	return &StockService{pool: pool, newStore: newStore}
}

// stockDelta is the signed stock effect of a movement type. ENTRY and
// ADJUSTMENT_IN add, CONSUMPTION, LOSS and ADJUSTMENT_OUT subtract.
func stockDelta(movementType string, quantity decimal.Decimal) (decimal.Decimal, error) {
	switch movementType {
	case enum.InventoryMovementEntry, enum.InventoryMovementAdjustmentIn:
		return quantity, nil
	case enum.InventoryMovementConsumption, enum.InventoryMovementLoss, enum.InventoryMovementAdjustmentOut:
		return quantity.Neg(), nil
	}
	return decimal.Zero, ErrInvalidStockMovement
}

// CreateSupplyRequest is the validated input for registering a supply.
type CreateSupplyRequest struct {
	Code     string
	Name     string
	Unit     string
	MinStock string
	Notes    string
}

// CreateSupply registers a new supply with zero stock.
func (s *StockService) CreateSupply(ctx context.Context, req CreateSupplyRequest) (database.Supply, error) {
	minStock := decimal.Zero
	if req.MinStock != "" {
		var err error
		minStock, err = decimal.NewFromString(req.MinStock)
		if err != nil || minStock.IsNegative() {
			return database.Supply{}, ErrInvalidMinStock
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Supply{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	supply, err := store.CreateSupply(ctx, database.CreateSupplyParams{
		Code:     req.Code,
		Name:     req.Name,
		Unit:     req.Unit,
		MinStock: decimalToNumeric(minStock),
		Notes:    textOrNull(req.Notes),
	})
	if err != nil {
		return database.Supply{}, fmt.Errorf("create supply: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Supply{}, fmt.Errorf("commit tx: %w", err)
	}
	return supply, nil
}

// MovementInput is the validated input for a stock movement.
type MovementInput struct {
	SupplyID     uuid.UUID
	MovementType string
	Quantity     string
	UnitCost     string
	Concept      string
	Notes        string
	CreatedBy    uuid.UUID
}

// CreateMovement records a stock movement and applies its delta to the
// supply's current stock, all under the supply's row lock.
func (s *StockService) CreateMovement(ctx context.Context, req MovementInput, actor audit.Actor) (database.InventoryMovement, database.Supply, error) {
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || quantity.LessThanOrEqual(decimal.Zero) {
		return database.InventoryMovement{}, database.Supply{}, ErrInvalidStockQuantity
	}
	delta, err := stockDelta(req.MovementType, quantity)
	if err != nil {
		return database.InventoryMovement{}, database.Supply{}, err
	}
	unitCost := decimal.Zero
	if req.UnitCost != "" {
		unitCost, err = decimal.NewFromString(req.UnitCost)
		if err != nil || unitCost.IsNegative() {
			return database.InventoryMovement{}, database.Supply{}, ErrInvalidUnitCost
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.InventoryMovement{}, database.Supply{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	supply, err := s.applyDelta(ctx, store, req.SupplyID, delta)
	if err != nil {
		return database.InventoryMovement{}, database.Supply{}, err
	}

	movement, err := store.CreateInventoryMovement(ctx, database.CreateInventoryMovementParams{
		SupplyID:     req.SupplyID,
		MovementType: req.MovementType,
		Quantity:     decimalToNumeric(quantity),
		UnitCost:     decimalToNumeric(unitCost),
		Concept:      req.Concept,
		Notes:        textOrNull(req.Notes),
		CreatedBy:    pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return database.InventoryMovement{}, database.Supply{}, fmt.Errorf("create inventory movement: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "inventory.movement_created",
		TargetModel: "inventory.InventoryMovement",
		TargetPK:    movement.ID.String(),
		Metadata: map[string]any{
			"supply_id":     req.SupplyID,
			"movement_type": req.MovementType,
			"quantity":      quantity,
			"stock_after":   numericToDecimal(supply.CurrentStock),
		},
	}); err != nil {
		return database.InventoryMovement{}, database.Supply{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.InventoryMovement{}, database.Supply{}, fmt.Errorf("commit tx: %w", err)
	}
	return movement, supply, nil
}

// UpdateMovement edits an existing movement, replaying its stock
// effect: the old delta is reversed before the new one is applied.
// When the movement is reassigned to a different supply the old
// supply's stock is restored first, then the new supply is charged.
func (s *StockService) UpdateMovement(ctx context.Context, movementID uuid.UUID, req MovementInput, actor audit.Actor) (database.InventoryMovement, error) {
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil || quantity.LessThanOrEqual(decimal.Zero) {
		return database.InventoryMovement{}, ErrInvalidStockQuantity
	}
	newDelta, err := stockDelta(req.MovementType, quantity)
	if err != nil {
		return database.InventoryMovement{}, err
	}
	unitCost := decimal.Zero
	if req.UnitCost != "" {
		unitCost, err = decimal.NewFromString(req.UnitCost)
		if err != nil || unitCost.IsNegative() {
			return database.InventoryMovement{}, ErrInvalidUnitCost
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.InventoryMovement{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	old, err := store.GetInventoryMovementForUpdate(ctx, movementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.InventoryMovement{}, ErrMovementNotFound
		}
		return database.InventoryMovement{}, fmt.Errorf("get inventory movement: %w", err)
	}

	oldDelta, err := stockDelta(old.MovementType, numericToDecimal(old.Quantity))
	if err != nil {
		return database.InventoryMovement{}, err
	}

	if req.SupplyID == old.SupplyID {
		// Same supply: apply the net change under one lock.
		if _, err := s.applyDelta(ctx, store, old.SupplyID, newDelta.Sub(oldDelta)); err != nil {
			return database.InventoryMovement{}, err
		}
	} else {
		// Reassigned: restore the old supply before charging the new
		// one so a failure leaves no stock applied twice.
		if _, err := s.applyDelta(ctx, store, old.SupplyID, oldDelta.Neg()); err != nil {
			return database.InventoryMovement{}, err
		}
		if _, err := s.applyDelta(ctx, store, req.SupplyID, newDelta); err != nil {
			return database.InventoryMovement{}, err
		}
	}

	updated, err := store.UpdateInventoryMovement(ctx, database.UpdateInventoryMovementParams{
		ID:           old.ID,
		SupplyID:     req.SupplyID,
		MovementType: req.MovementType,
		Quantity:     decimalToNumeric(quantity),
		UnitCost:     decimalToNumeric(unitCost),
		Concept:      req.Concept,
		Notes:        textOrNull(req.Notes),
	})
	if err != nil {
		return database.InventoryMovement{}, fmt.Errorf("update inventory movement: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "inventory.movement_edited",
		TargetModel: "inventory.InventoryMovement",
		TargetPK:    old.ID.String(),
		Changes: map[string]audit.Change{
			"supply_id":     {Before: old.SupplyID, After: req.SupplyID},
			"movement_type": {Before: old.MovementType, After: req.MovementType},
			"quantity":      {Before: numericToDecimal(old.Quantity), After: quantity},
		},
	}); err != nil {
		return database.InventoryMovement{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.InventoryMovement{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// DeleteMovement removes a movement, reversing its stock effect.
func (s *StockService) DeleteMovement(ctx context.Context, movementID uuid.UUID, actor audit.Actor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	old, err := store.GetInventoryMovementForUpdate(ctx, movementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMovementNotFound
		}
		return fmt.Errorf("get inventory movement: %w", err)
	}

	oldDelta, err := stockDelta(old.MovementType, numericToDecimal(old.Quantity))
	if err != nil {
		return err
	}
	if _, err := s.applyDelta(ctx, store, old.SupplyID, oldDelta.Neg()); err != nil {
		return err
	}

	if err := store.DeleteInventoryMovement(ctx, old.ID); err != nil {
		return fmt.Errorf("delete inventory movement: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "inventory.movement_deleted",
		TargetModel: "inventory.InventoryMovement",
		TargetPK:    old.ID.String(),
		Metadata: map[string]any{
			"supply_id":     old.SupplyID,
			"movement_type": old.MovementType,
			"quantity":      numericToDecimal(old.Quantity),
		},
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// applyDelta locks the supply row, re-reads current stock, applies the
// signed delta and rejects the write if the result would go negative.
func (s *StockService) applyDelta(ctx context.Context, store StockStore, supplyID uuid.UUID, delta decimal.Decimal) (database.Supply, error) {
	supply, err := store.GetSupplyForUpdate(ctx, supplyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Supply{}, ErrSupplyNotFound
		}
		return database.Supply{}, fmt.Errorf("get supply: %w", err)
	}

	next := numericToDecimal(supply.CurrentStock).Add(delta)
	if next.IsNegative() {
		return database.Supply{}, fmt.Errorf("%w: supply %s has %s, movement needs %s",
			ErrInsufficientStock, supply.Code,
			numericToDecimal(supply.CurrentStock).StringFixed(2), delta.Abs().StringFixed(2))
	}

	updated, err := store.UpdateSupplyStock(ctx, database.UpdateSupplyStockParams{
		ID:           supply.ID,
		CurrentStock: decimalToNumeric(next),
	})
	if err != nil {
		return database.Supply{}, fmt.Errorf("update supply stock: %w", err)
	}
	return updated, nil
}
