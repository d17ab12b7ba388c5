package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the payment service.
var (
	ErrInvalidAmount        = errors.New("amount must be > 0")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyVoid   = errors.New("payment is already void")
	ErrPaymentOrderTerminal = errors.New("cannot register a payment against a cancelled order")
)

// PaymentStore defines the DB methods needed by the payment service.
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderDerived(ctx context.Context, arg database.UpdateOrderDerivedParams) (database.Order, error)
	SumOrderItems(ctx context.Context, orderID uuid.UUID) (database.SumOrderItemsRow, error)
	SumAppliedPayments(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	CountOrderItemsByCategory(ctx context.Context, arg database.CountOrderItemsByCategoryParams) (int64, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	UpdatePayment(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error)
	VoidPayment(ctx context.Context, arg database.VoidPaymentParams) (database.Payment, error)
	GetOpenCashSessionByUser(ctx context.Context, userID uuid.UUID) (database.CashSession, error)
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// CreatePaymentRequest is the validated input for registering a payment.
type CreatePaymentRequest struct {
	OrderID    uuid.UUID
	Method     string
	Amount     string
	Reference  string
	Notes      string
	CapturedBy uuid.UUID
}

// UpdatePaymentRequest carries the editable fields of a payment.
type UpdatePaymentRequest struct {
	Method    string
	Amount    string
	Reference string
	Notes     string
}

// PaymentService registers, edits and voids payments, keeping the
// parent order's paid amount and balance consistent in the same
// transaction as each mutation.
type PaymentService struct {
	pool     TxBeginner
	newStore NewPaymentStore
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(pool TxBeginner, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, newStore: newStore, now: time.Now}
}

// Create registers a payment against an order. Cash payments captured
// by a user with an open cash session are attached to that session so
// reconciliation can account for them.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return database.Payment{}, database.Order{}, ErrInvalidAmount
	}
	if !isValidPaymentMethod(req.Method) {
		return database.Payment{}, database.Order{}, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, database.Order{}, ErrOrderNotFound
		}
		return database.Payment{}, database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusCancelled {
		return database.Payment{}, database.Order{}, ErrPaymentOrderTerminal
	}

	// Every payment links to the capturer's open session regardless of
	// method; the session summary later splits them per method and only
	// counts CASH toward the expected drawer amount.
	sessionID := pgtype.UUID{}
	session, err := store.GetOpenCashSessionByUser(ctx, req.CapturedBy)
	switch {
	case err == nil:
		sessionID = pgtype.UUID{Bytes: session.ID, Valid: true}
	case errors.Is(err, pgx.ErrNoRows):
		// No open session: the payment stays unattached.
	default:
		return database.Payment{}, database.Order{}, fmt.Errorf("get open cash session: %w", err)
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:       order.ID,
		CashSessionID: sessionID,
		CapturedBy:    pgtype.UUID{Bytes: req.CapturedBy, Valid: true},
		Method:        req.Method,
		Status:        enum.PaymentStatusApplied,
		Amount:        decimalToNumeric(amount),
		PaidAt:        s.now(),
		Reference:     textOrNull(req.Reference),
		Notes:         textOrNull(req.Notes),
	})
	if err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("create payment: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "payment.created",
		TargetModel: "payments.Payment",
		TargetPK:    payment.ID.String(),
		Metadata: map[string]any{
			"order_id": order.ID,
			"method":   payment.Method,
			"amount":   amount,
		},
	}); err != nil {
		return database.Payment{}, database.Order{}, err
	}

	order, err = refreshOrder(ctx, store, order.ID)
	if err != nil {
		return database.Payment{}, database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return payment, order, nil
}

// Update edits an applied payment's method, amount, reference or
// notes, records the before/after diff, and refreshes the order.
func (s *PaymentService) Update(ctx context.Context, paymentID uuid.UUID, req UpdatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, database.Order{}, ErrPaymentNotFound
		}
		return database.Payment{}, database.Order{}, fmt.Errorf("get payment: %w", err)
	}
	if payment.Status == enum.PaymentStatusVoid {
		return database.Payment{}, database.Order{}, ErrPaymentAlreadyVoid
	}

	if _, err := store.GetOrderForUpdate(ctx, payment.OrderID); err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("get order: %w", err)
	}

	method := payment.Method
	if req.Method != "" {
		if !isValidPaymentMethod(req.Method) {
			return database.Payment{}, database.Order{}, ErrInvalidPaymentMethod
		}
		method = req.Method
	}

	amount := numericToDecimal(payment.Amount)
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil || amount.LessThanOrEqual(decimal.Zero) {
			return database.Payment{}, database.Order{}, ErrInvalidAmount
		}
	}

	reference := payment.Reference
	if req.Reference != "" {
		reference = pgtype.Text{String: req.Reference, Valid: true}
	}
	notes := payment.Notes
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	changes := map[string]audit.Change{}
	if method != payment.Method {
		changes["method"] = audit.Change{Before: payment.Method, After: method}
	}
	if !amount.Equal(numericToDecimal(payment.Amount)) {
		changes["amount"] = audit.Change{Before: numericToDecimal(payment.Amount), After: amount}
	}

	updated, err := store.UpdatePayment(ctx, database.UpdatePaymentParams{
		ID:        payment.ID,
		Method:    method,
		Amount:    decimalToNumeric(amount),
		Reference: reference,
		Notes:     notes,
	})
	if err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("update payment: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "payment.edited",
		TargetModel: "payments.Payment",
		TargetPK:    payment.ID.String(),
		Changes:     changes,
		Metadata:    map[string]any{"order_id": payment.OrderID},
	}); err != nil {
		return database.Payment{}, database.Order{}, err
	}

	order, err := refreshOrder(ctx, store, payment.OrderID)
	if err != nil {
		return database.Payment{}, database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, order, nil
}

// Void marks a payment VOID so it no longer counts toward the order's
// paid amount. Payments are never deleted.
func (s *PaymentService) Void(ctx context.Context, paymentID uuid.UUID, actor audit.Actor) (database.Payment, database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	payment, err := store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, database.Order{}, ErrPaymentNotFound
		}
		return database.Payment{}, database.Order{}, fmt.Errorf("get payment: %w", err)
	}
	if payment.Status == enum.PaymentStatusVoid {
		return database.Payment{}, database.Order{}, ErrPaymentAlreadyVoid
	}

	if _, err := store.GetOrderForUpdate(ctx, payment.OrderID); err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("get order: %w", err)
	}

	voided, err := store.VoidPayment(ctx, database.VoidPaymentParams{
		ID:     payment.ID,
		Status: enum.PaymentStatusVoid,
	})
	if err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("void payment: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "payment.voided",
		TargetModel: "payments.Payment",
		TargetPK:    payment.ID.String(),
		Changes: map[string]audit.Change{
			"status": {Before: payment.Status, After: voided.Status},
		},
		Metadata: map[string]any{
			"order_id": payment.OrderID,
			"amount":   numericToDecimal(payment.Amount),
		},
	}); err != nil {
		return database.Payment{}, database.Order{}, err
	}

	order, err := refreshOrder(ctx, store, payment.OrderID)
	if err != nil {
		return database.Payment{}, database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Payment{}, database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return voided, order, nil
}

func isValidPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer, enum.PaymentMethodOther:
		return true
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
