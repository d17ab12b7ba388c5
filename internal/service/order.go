package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/lavanderia-pos/api/internal/money"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidUnitPrice   = errors.New("unit_price must be >= 0")
	ErrInvalidTaxRate     = errors.New("tax_rate must be between 0 and 100")
	ErrInvalidServiceID   = errors.New("invalid service_id")
	ErrInvalidCustomerID  = errors.New("invalid customer_id")
	ErrServiceNotFound    = errors.New("service not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrItemNotFound       = errors.New("order item not found")
	ErrOrderTerminal      = errors.New("order is delivered or cancelled")
	ErrCancelNotReceived  = errors.New("only orders in RECEIVED state can be cancelled")
	ErrDeliverNotReady    = errors.New("only orders in READY state can be delivered")
	ErrOutstandingBalance = errors.New("cannot deliver an order with outstanding balance")
	ErrInvalidArea        = errors.New("invalid production area")
	ErrInvalidAreaStatus  = errors.New("invalid area status")
	ErrAreaNotApplicable  = errors.New("area is not applicable for this order")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderDerived(ctx context.Context, arg database.UpdateOrderDerivedParams) (database.Order, error)
	UpdateOrderAreaStatus(ctx context.Context, arg database.UpdateOrderAreaStatusParams) (database.Order, error)
	MarkOrderDelivered(ctx context.Context, arg database.MarkOrderDeliveredParams) (database.Order, error)
	MarkOrderCancelled(ctx context.Context, arg database.MarkOrderCancelledParams) (database.Order, error)
	GetService(ctx context.Context, id uuid.UUID) (database.Service, error)
	ListActivePromotionsForService(ctx context.Context, arg database.ListActivePromotionsForServiceParams) ([]database.ServicePromotion, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	SumOrderItems(ctx context.Context, orderID uuid.UUID) (database.SumOrderItemsRow, error)
	SumAppliedPayments(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	CountOrderItemsByCategory(ctx context.Context, arg database.CountOrderItemsByCategoryParams) (int64, error)
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CustomerID string
	PromisedAt string // RFC3339, optional
	Notes      string
	CreatedBy  uuid.UUID
	Items      []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line item in the order.
type CreateOrderItemRequest struct {
	ServiceID   string
	Description string
	Quantity    string
}

// CreateOrderResult is the created order with its items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService owns order financial recomputation and the order state
// machine (delivery, cancellation, production-area progress).
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	now      func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, now: time.Now}
}

const maxFolioRetries = 3

// CreateOrder validates, snapshots service pricing, and creates an
// order with its items atomically. The service snapshot (pricing mode,
// effective unit price, tax rate) is frozen at creation time so later
// catalog edits never rewrite history.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Retry loop: handles the folio unique constraint race condition.
	var lastErr error
	for attempt := 0; attempt < maxFolioRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isFolioConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isFolioConflict checks if the error is a unique constraint violation
// on the order folio (pgconn error code 23505).
func isFolioConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_folio_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	customerID := pgtype.UUID{}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	promisedAt := pgtype.Timestamptz{}
	if req.PromisedAt != "" {
		t, err := time.Parse(time.RFC3339, req.PromisedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid promised_at: %w", err)
		}
		promisedAt = pgtype.Timestamptz{Time: t, Valid: true}
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	folio := fmt.Sprintf("ORD-%s", s.now().Format("20060102150405.000000"))

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		Folio:      folio,
		CustomerID: customerID,
		PromisedAt: promisedAt,
		Notes:      notes,
		CreatedBy:  pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var items []database.OrderItem
	for i, item := range req.Items {
		created, err := s.createItemTx(ctx, store, order.ID, item)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		items = append(items, created)
	}

	order, err = refreshOrder(ctx, store, order.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: items}, nil
}

// createItemTx validates one item, snapshots the service pricing and
// inserts the line with its computed totals.
func (s *OrderService) createItemTx(ctx context.Context, store OrderStore, orderID uuid.UUID, item CreateOrderItemRequest) (database.OrderItem, error) {
	serviceID, err := uuid.Parse(item.ServiceID)
	if err != nil {
		return database.OrderItem{}, ErrInvalidServiceID
	}

	qty, err := decimal.NewFromString(item.Quantity)
	if err != nil || qty.LessThanOrEqual(decimal.Zero) {
		return database.OrderItem{}, ErrInvalidQuantity
	}

	svc, err := store.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, ErrServiceNotFound
		}
		return database.OrderItem{}, fmt.Errorf("get service: %w", err)
	}

	unitPrice, err := s.effectiveUnitPrice(ctx, store, svc)
	if err != nil {
		return database.OrderItem{}, err
	}
	taxRate := numericToDecimal(svc.DefaultTaxRate)

	subtotal, tax, total := money.LineTotals(qty, unitPrice, taxRate)

	description := item.Description
	if description == "" {
		description = svc.Name
	}

	created, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:     orderID,
		ServiceID:   serviceID,
		Description: description,
		PricingMode: svc.PricingMode,
		Quantity:    decimalToNumeric(qty),
		UnitPrice:   decimalToNumeric(unitPrice),
		TaxRate:     decimalToNumeric(taxRate),
		Subtotal:    decimalToNumeric(subtotal),
		TaxAmount:   decimalToNumeric(tax),
		Total:       decimalToNumeric(total),
	})
	if err != nil {
		return database.OrderItem{}, fmt.Errorf("create order item: %w", err)
	}
	return created, nil
}

// effectiveUnitPrice applies the single best currently-active promotion
// (lowest resulting price), floored at zero.
func (s *OrderService) effectiveUnitPrice(ctx context.Context, store OrderStore, svc database.Service) (decimal.Decimal, error) {
	base := numericToDecimal(svc.UnitPrice)
	promos, err := store.ListActivePromotionsForService(ctx, database.ListActivePromotionsForServiceParams{
		ServiceID: svc.ID,
		At:        s.now(),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list promotions: %w", err)
	}

	best := base
	for _, p := range promos {
		candidate := discountedPrice(base, p.DiscountType, numericToDecimal(p.DiscountValue))
		if candidate.LessThan(best) {
			best = candidate
		}
	}
	return money.Round2(best), nil
}

func discountedPrice(base decimal.Decimal, discountType string, value decimal.Decimal) decimal.Decimal {
	var result decimal.Decimal
	if discountType == enum.DiscountTypePercent {
		result = base.Sub(base.Mul(value).Div(decimal.NewFromInt(100)))
	} else {
		result = base.Sub(value)
	}
	if result.IsNegative() {
		return decimal.Zero
	}
	return result
}

// UpdateItemRequest carries the editable fields of a line item.
type UpdateItemRequest struct {
	Description string
	Quantity    string
	UnitPrice   string
	TaxRate     string
}

// AddItem appends a line item to an existing order and recomputes the
// order aggregates in the same transaction.
func (s *OrderService) AddItem(ctx context.Context, orderID uuid.UUID, item CreateOrderItemRequest) (database.OrderItem, database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.OrderItem{}, database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := s.lockMutableOrder(ctx, store, orderID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, err
	}

	created, err := s.createItemTx(ctx, store, order.ID, item)
	if err != nil {
		return database.OrderItem{}, database.Order{}, err
	}

	order, err = refreshOrder(ctx, store, order.ID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.OrderItem{}, database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return created, order, nil
}

// UpdateItem edits a line item, recomputing its totals from the stored
// snapshot plus any overridden fields, then refreshes the parent order.
func (s *OrderService) UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, req UpdateItemRequest) (database.OrderItem, database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.OrderItem{}, database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := s.lockMutableOrder(ctx, store, orderID); err != nil {
		return database.OrderItem{}, database.Order{}, err
	}

	item, err := store.GetOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, database.Order{}, ErrItemNotFound
		}
		return database.OrderItem{}, database.Order{}, fmt.Errorf("get order item: %w", err)
	}
	if item.OrderID != orderID {
		return database.OrderItem{}, database.Order{}, ErrItemNotFound
	}

	qty := numericToDecimal(item.Quantity)
	if req.Quantity != "" {
		qty, err = decimal.NewFromString(req.Quantity)
		if err != nil || qty.LessThanOrEqual(decimal.Zero) {
			return database.OrderItem{}, database.Order{}, ErrInvalidQuantity
		}
	}

	unitPrice := numericToDecimal(item.UnitPrice)
	if req.UnitPrice != "" {
		unitPrice, err = decimal.NewFromString(req.UnitPrice)
		if err != nil || unitPrice.IsNegative() {
			return database.OrderItem{}, database.Order{}, ErrInvalidUnitPrice
		}
	}

	taxRate := numericToDecimal(item.TaxRate)
	if req.TaxRate != "" {
		taxRate, err = decimal.NewFromString(req.TaxRate)
		if err != nil || taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
			return database.OrderItem{}, database.Order{}, ErrInvalidTaxRate
		}
	}

	description := item.Description
	if req.Description != "" {
		description = req.Description
	}

	subtotal, tax, total := money.LineTotals(qty, unitPrice, taxRate)

	updated, err := store.UpdateOrderItem(ctx, database.UpdateOrderItemParams{
		ID:          item.ID,
		Description: description,
		Quantity:    decimalToNumeric(qty),
		UnitPrice:   decimalToNumeric(unitPrice),
		TaxRate:     decimalToNumeric(taxRate),
		Subtotal:    decimalToNumeric(subtotal),
		TaxAmount:   decimalToNumeric(tax),
		Total:       decimalToNumeric(total),
	})
	if err != nil {
		return database.OrderItem{}, database.Order{}, fmt.Errorf("update order item: %w", err)
	}

	order, err := refreshOrder(ctx, store, orderID)
	if err != nil {
		return database.OrderItem{}, database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.OrderItem{}, database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, order, nil
}

// DeleteItem removes a line item and refreshes the parent order.
func (s *OrderService) DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := s.lockMutableOrder(ctx, store, orderID); err != nil {
		return database.Order{}, err
	}

	item, err := store.GetOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrItemNotFound
		}
		return database.Order{}, fmt.Errorf("get order item: %w", err)
	}
	if item.OrderID != orderID {
		return database.Order{}, ErrItemNotFound
	}

	if err := store.DeleteOrderItem(ctx, itemID); err != nil {
		return database.Order{}, fmt.Errorf("delete order item: %w", err)
	}

	order, err := refreshOrder(ctx, store, orderID)
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// SetAreaStatus moves one production area (wash/dry/ironing) and
// re-derives the overall order status.
func (s *OrderService) SetAreaStatus(ctx context.Context, orderID uuid.UUID, area, status string) (database.Order, error) {
	if !isValidAreaStatus(status) || status == enum.AreaStatusNotApplicable {
		return database.Order{}, ErrInvalidAreaStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := s.lockMutableOrder(ctx, store, orderID)
	if err != nil {
		return database.Order{}, err
	}

	switch area {
	case "wash":
		order.WashStatus = status
	case "dry":
		order.DryStatus = status
	case "ironing":
		if order.IroningStatus == enum.AreaStatusNotApplicable {
			return database.Order{}, ErrAreaNotApplicable
		}
		order.IroningStatus = status
	default:
		return database.Order{}, ErrInvalidArea
	}

	if _, err := store.UpdateOrderAreaStatus(ctx, database.UpdateOrderAreaStatusParams{
		ID:            order.ID,
		WashStatus:    order.WashStatus,
		DryStatus:     order.DryStatus,
		IroningStatus: order.IroningStatus,
	}); err != nil {
		return database.Order{}, fmt.Errorf("update area status: %w", err)
	}

	order, err = refreshOrder(ctx, store, order.ID)
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// Deliver hands the order over to the customer. Blocked while any
// balance remains, and only allowed from READY.
func (s *OrderService) Deliver(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if order.Status != enum.OrderStatusReady {
		return database.Order{}, ErrDeliverNotReady
	}
	if numericToDecimal(order.Balance).GreaterThan(decimal.Zero) {
		return database.Order{}, ErrOutstandingBalance
	}

	order, err = store.MarkOrderDelivered(ctx, database.MarkOrderDeliveredParams{
		ID:          order.ID,
		Status:      enum.OrderStatusDelivered,
		DeliveredAt: pgtype.Timestamptz{Time: s.now(), Valid: true},
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("mark delivered: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// Cancel aborts an order still in RECEIVED, recording an audit row in
// the same transaction.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, actor audit.Actor) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if order.Status != enum.OrderStatusReceived {
		return database.Order{}, ErrCancelNotReceived
	}

	previous := order.Status
	order, err = store.MarkOrderCancelled(ctx, database.MarkOrderCancelledParams{
		ID:     order.ID,
		Status: enum.OrderStatusCancelled,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("mark cancelled: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "order.cancelled",
		TargetModel: "orders.Order",
		TargetPK:    order.ID.String(),
		Changes: map[string]audit.Change{
			"status": {Before: previous, After: order.Status},
		},
		Metadata: map[string]any{"folio": order.Folio},
	}); err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// Refresh recomputes and persists the order's derived financial fields
// and statuses in its own transaction.
func (s *OrderService) Refresh(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	order, err := refreshOrder(ctx, store, orderID)
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// lockMutableOrder loads the order under a row lock and rejects
// mutations against terminal orders.
func (s *OrderService) lockMutableOrder(ctx context.Context, store OrderStore, orderID uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusDelivered || order.Status == enum.OrderStatusCancelled {
		return database.Order{}, ErrOrderTerminal
	}
	return order, nil
}

// orderRefreshStore is the slice of the store needed to recompute an
// order's derived fields. Both OrderStore and PaymentStore satisfy it.
type orderRefreshStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	SumOrderItems(ctx context.Context, orderID uuid.UUID) (database.SumOrderItemsRow, error)
	SumAppliedPayments(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	CountOrderItemsByCategory(ctx context.Context, arg database.CountOrderItemsByCategoryParams) (int64, error)
	UpdateOrderDerived(ctx context.Context, arg database.UpdateOrderDerivedParams) (database.Order, error)
}

// refreshOrder recomputes subtotal/tax/total/paid/balance from the
// persisted line items and applied payments, re-derives area and
// global statuses, and writes the derived fields in one UPDATE. Must
// run inside the same transaction as the mutation that triggered it.
func refreshOrder(ctx context.Context, store orderRefreshStore, orderID uuid.UUID) (database.Order, error) {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	sums, err := store.SumOrderItems(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("sum order items: %w", err)
	}
	paidNum, err := store.SumAppliedPayments(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("sum payments: %w", err)
	}

	subtotal := numericToDecimal(sums.Subtotal)
	taxAmount := numericToDecimal(sums.TaxAmount)
	total := numericToDecimal(sums.Total)
	paid := numericToDecimal(paidNum)
	balance := total.Sub(paid)

	ironingCount, err := store.CountOrderItemsByCategory(ctx, database.CountOrderItemsByCategoryParams{
		OrderID:  orderID,
		Category: enum.ServiceCategoryIroning,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("count ironing items: %w", err)
	}

	ironingStatus := order.IroningStatus
	if ironingCount > 0 && ironingStatus == enum.AreaStatusNotApplicable {
		ironingStatus = enum.AreaStatusPending
	} else if ironingCount == 0 {
		ironingStatus = enum.AreaStatusNotApplicable
	}

	status := deriveOrderStatus(order.Status, order.WashStatus, order.DryStatus, ironingStatus)

	return store.UpdateOrderDerived(ctx, database.UpdateOrderDerivedParams{
		ID:            orderID,
		Subtotal:      decimalToNumeric(subtotal),
		TaxAmount:     decimalToNumeric(taxAmount),
		Total:         decimalToNumeric(total),
		PaidAmount:    decimalToNumeric(paid),
		Balance:       decimalToNumeric(balance),
		Status:        status,
		WashStatus:    order.WashStatus,
		DryStatus:     order.DryStatus,
		IroningStatus: ironingStatus,
	})
}

// deriveOrderStatus maps area progress onto the overall status.
// DELIVERED and CANCELLED are terminal and never overwritten.
func deriveOrderStatus(current, washStatus, dryStatus, ironingStatus string) string {
	if current == enum.OrderStatusDelivered || current == enum.OrderStatusCancelled {
		return current
	}

	required := []string{washStatus, dryStatus}
	if ironingStatus != enum.AreaStatusNotApplicable {
		required = append(required, ironingStatus)
	}

	allDone := true
	anyInProgress := false
	for _, st := range required {
		if st != enum.AreaStatusDone {
			allDone = false
		}
		if st == enum.AreaStatusInProgress {
			anyInProgress = true
		}
	}

	switch {
	case allDone:
		return enum.OrderStatusReady
	case anyInProgress:
		return enum.OrderStatusInProcess
	default:
		return enum.OrderStatusReceived
	}
}

func isValidAreaStatus(s string) bool {
	switch s {
	case enum.AreaStatusPending, enum.AreaStatusInProgress, enum.AreaStatusDone, enum.AreaStatusNotApplicable:
		return true
	}
	return false
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
