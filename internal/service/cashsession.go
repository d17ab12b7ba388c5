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
	"github.com/shopspring/decimal"
)

// Errors returned by the cash session service.
var (
	ErrSessionNotFound       = errors.New("cash session not found")
	ErrSessionAlreadyOpen    = errors.New("user already has an open cash session")
	ErrSessionClosed         = errors.New("cash session is closed")
	ErrInvalidOpeningAmount  = errors.New("opening_amount must be >= 0")
	ErrInvalidClosingAmount  = errors.New("closing_amount must be >= 0")
	ErrInvalidMovementType   = errors.New("invalid cash movement type")
	ErrInvalidMovementAmount = errors.New("movement amount must be > 0")
	ErrEmptyConcept          = errors.New("concept is required")
)

// CashStore defines the DB methods needed by the cash session service.
type CashStore interface {
	CreateCashSession(ctx context.Context, arg database.CreateCashSessionParams) (database.CashSession, error)
	GetCashSession(ctx context.Context, id uuid.UUID) (database.CashSession, error)
	GetCashSessionForUpdate(ctx context.Context, id uuid.UUID) (database.CashSession, error)
	CloseCashSession(ctx context.Context, arg database.CloseCashSessionParams) (database.CashSession, error)
	CreateCashMovement(ctx context.Context, arg database.CreateCashMovementParams) (database.CashMovement, error)
	SumCashMovementsByType(ctx context.Context, cashSessionID uuid.UUID) ([]database.SumCashMovementsByTypeRow, error)
	SumSessionPaymentsByMethod(ctx context.Context, cashSessionID uuid.UUID) ([]database.SumSessionPaymentsByMethodRow, error)
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// NewCashStore creates a CashStore from a DBTX (pool or tx).
type NewCashStore func(db database.DBTX) CashStore

// SessionSummary is the reconciliation view of one cash session.
// ExpectedCash = opening + cash payments + income + adjustment - expense.
type SessionSummary struct {
	Session            database.CashSession
	PaymentsByMethod   map[string]decimal.Decimal
	PaymentsTotal      decimal.Decimal
	CashPayments       decimal.Decimal
	MovementIncome     decimal.Decimal
	MovementExpense    decimal.Decimal
	MovementAdjustment decimal.Decimal
	// GeneratedTotal = payments + manual income; NetGain subtracts
	// the manual expenses from it.
	GeneratedTotal decimal.Decimal
	NetGain        decimal.Decimal
	ExpectedCash   decimal.Decimal
	// ClosingAmount and Difference are only meaningful once the
	// session is closed; Difference = closing - expected.
	ClosingAmount decimal.Decimal
	Difference    decimal.Decimal
}

// CashSessionService opens, reconciles and closes cash drawer
// sessions. At most one session per user may be open at a time; the
// database enforces this with a partial unique index so concurrent
// opens cannot race past the check.
type CashSessionService struct {
	pool          TxBeginner
	newStore      NewCashStore
	alerter       *audit.Alerter
	diffThreshold decimal.Decimal
	now           func() time.Time
}

// NewCashSessionService creates a new CashSessionService.
// diffThreshold is the absolute cash difference at or above which a
// CRITICAL alert is raised when a session closes.
func NewCashSessionService(pool TxBeginner, newStore NewCashStore, alerter *audit.Alerter, diffThreshold decimal.Decimal) *CashSessionService {
	return &CashSessionService{
		pool:          pool,
		newStore:      newStore,
		alerter:       alerter,
		diffThreshold: diffThreshold,
		now:           time.Now,
	}
}

// OpenSessionRequest is the validated input for opening a session.
type OpenSessionRequest struct {
	UserID        uuid.UUID
	Shift         string
	OpeningAmount string
	Notes         string
}

// Open starts a new cash session for the user. The partial unique
// index on (user_id) WHERE closed_at IS NULL turns a concurrent
// double-open into a constraint violation we map to
// ErrSessionAlreadyOpen.
func (s *CashSessionService) Open(ctx context.Context, req OpenSessionRequest, actor audit.Actor) (database.CashSession, error) {
	opening, err := decimal.NewFromString(req.OpeningAmount)
	if err != nil || opening.IsNegative() {
		return database.CashSession{}, ErrInvalidOpeningAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.CashSession{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.CreateCashSession(ctx, database.CreateCashSessionParams{
		UserID:        req.UserID,
		Shift:         req.Shift,
		OpeningAmount: decimalToNumeric(opening),
		Notes:         textOrNull(req.Notes),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			pgErr.ConstraintName == "uniq_open_cash_session_per_user" {
			return database.CashSession{}, ErrSessionAlreadyOpen
		}
		return database.CashSession{}, fmt.Errorf("create cash session: %w", err)
	}

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "cash_session.opened",
		TargetModel: "cashbox.CashSession",
		TargetPK:    session.ID.String(),
		Metadata: map[string]any{
			"shift":          session.Shift,
			"opening_amount": opening,
		},
	}); err != nil {
		return database.CashSession{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.CashSession{}, fmt.Errorf("commit tx: %w", err)
	}
	return session, nil
}

// Summary computes the reconciliation totals for a session from the
// payments attached to it and its manual movements.
func (s *CashSessionService) Summary(ctx context.Context, sessionID uuid.UUID) (*SessionSummary, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetCashSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get cash session: %w", err)
	}

	summary, err := s.summaryTx(ctx, store, session)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return summary, nil
}

func (s *CashSessionService) summaryTx(ctx context.Context, store CashStore, session database.CashSession) (*SessionSummary, error) {
	byMethod, err := store.SumSessionPaymentsByMethod(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sum session payments: %w", err)
	}
	movements, err := store.SumCashMovementsByType(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sum cash movements: %w", err)
	}

	summary := &SessionSummary{
		Session:          session,
		PaymentsByMethod: map[string]decimal.Decimal{},
	}
	for _, row := range byMethod {
		total := numericToDecimal(row.Total)
		summary.PaymentsByMethod[row.Method] = total
		summary.PaymentsTotal = summary.PaymentsTotal.Add(total)
		if row.Method == enum.PaymentMethodCash {
			summary.CashPayments = total
		}
	}
	for _, row := range movements {
		total := numericToDecimal(row.Total)
		switch row.MovementType {
		case enum.CashMovementIncome:
			summary.MovementIncome = total
		case enum.CashMovementExpense:
			summary.MovementExpense = total
		case enum.CashMovementAdjustment:
			summary.MovementAdjustment = total
		}
	}

	summary.GeneratedTotal = summary.PaymentsTotal.Add(summary.MovementIncome)
	summary.NetGain = summary.GeneratedTotal.Sub(summary.MovementExpense)

	opening := numericToDecimal(session.OpeningAmount)
	summary.ExpectedCash = opening.
		Add(summary.CashPayments).
		Add(summary.MovementIncome).
		Add(summary.MovementAdjustment).
		Sub(summary.MovementExpense)

	if session.ClosedAt.Valid {
		summary.ClosingAmount = numericToDecimal(session.ClosingAmount)
		summary.Difference = summary.ClosingAmount.Sub(summary.ExpectedCash)
	}
	return summary, nil
}

// CloseSessionRequest is the validated input for closing a session.
type CloseSessionRequest struct {
	SessionID     uuid.UUID
	ClosingAmount string
	Notes         string
}

// Close reconciles and closes a session. Closing is one-way: a closed
// session cannot be reopened or re-closed. When the counted cash
// differs from the expected cash by the configured threshold or more,
// a CRITICAL alert is raised after the transaction commits so the
// close itself never fails on alert storage.
func (s *CashSessionService) Close(ctx context.Context, req CloseSessionRequest, actor audit.Actor) (*SessionSummary, error) {
	closing, err := decimal.NewFromString(req.ClosingAmount)
	if err != nil || closing.IsNegative() {
		return nil, ErrInvalidClosingAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetCashSessionForUpdate(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get cash session: %w", err)
	}
	if session.ClosedAt.Valid {
		return nil, ErrSessionClosed
	}

	summary, err := s.summaryTx(ctx, store, session)
	if err != nil {
		return nil, err
	}

	closedAt := s.now()
	notes := session.Notes
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}
	closed, err := store.CloseCashSession(ctx, database.CloseCashSessionParams{
		ID:            session.ID,
		ClosingAmount: decimalToNumeric(closing),
		ClosedAt:      closedAt,
		Notes:         notes,
	})
	if err != nil {
		return nil, fmt.Errorf("close cash session: %w", err)
	}

	summary.Session = closed
	summary.ClosingAmount = closing
	summary.Difference = closing.Sub(summary.ExpectedCash)

	recorder := audit.NewRecorder(store)
	if err := recorder.Log(ctx, actor, audit.Event{
		Action:      "cash_session.closed",
		TargetModel: "cashbox.CashSession",
		TargetPK:    session.ID.String(),
		Metadata: map[string]any{
			"expected_cash":  summary.ExpectedCash,
			"closing_amount": closing,
			"difference":     summary.Difference,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if summary.Difference.Abs().GreaterThanOrEqual(s.diffThreshold) {
		s.alerter.RaiseBestEffort(ctx, "cash_session.high_difference", "cashbox", enum.AlertSeverityCritical,
			fmt.Sprintf("cash session %s closed with difference %s", session.ID, summary.Difference.StringFixed(2)),
			map[string]any{
				"session_id":     session.ID.String(),
				"user_id":        session.UserID.String(),
				"expected_cash":  summary.ExpectedCash.StringFixed(2),
				"closing_amount": closing.StringFixed(2),
				"difference":     summary.Difference.StringFixed(2),
			})
	}
	return summary, nil
}

// MovementRequest is the validated input for a manual cash movement.
type MovementRequest struct {
	SessionID    uuid.UUID
	MovementType string
	Amount       string
	Concept      string
	Notes        string
	CreatedBy    uuid.UUID
}

// AddMovement records a manual income, expense or adjustment against
// an open session.
func (s *CashSessionService) AddMovement(ctx context.Context, req MovementRequest) (database.CashMovement, error) {
	switch req.MovementType {
	case enum.CashMovementIncome, enum.CashMovementExpense, enum.CashMovementAdjustment:
	default:
		return database.CashMovement{}, ErrInvalidMovementType
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return database.CashMovement{}, ErrInvalidMovementAmount
	}
	if req.Concept == "" {
		return database.CashMovement{}, ErrEmptyConcept
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.CashMovement{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetCashSessionForUpdate(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.CashMovement{}, ErrSessionNotFound
		}
		return database.CashMovement{}, fmt.Errorf("get cash session: %w", err)
	}
	if session.ClosedAt.Valid {
		return database.CashMovement{}, ErrSessionClosed
	}

	movement, err := store.CreateCashMovement(ctx, database.CreateCashMovementParams{
		CashSessionID: session.ID,
		MovementType:  req.MovementType,
		Amount:        decimalToNumeric(amount),
		Concept:       req.Concept,
		Notes:         textOrNull(req.Notes),
		CreatedBy:     pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return database.CashMovement{}, fmt.Errorf("create cash movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.CashMovement{}, fmt.Errorf("commit tx: %w", err)
	}
	return movement, nil
}
