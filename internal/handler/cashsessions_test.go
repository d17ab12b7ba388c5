package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/auth"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/lavanderia-pos/api/internal/handler"
	"github.com/lavanderia-pos/api/internal/middleware"
	"github.com/lavanderia-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

type mockCashServicer struct {
	openFn        func(ctx context.Context, req service.OpenSessionRequest, actor audit.Actor) (database.CashSession, error)
	summaryFn     func(ctx context.Context, sessionID uuid.UUID) (*service.SessionSummary, error)
	closeFn       func(ctx context.Context, req service.CloseSessionRequest, actor audit.Actor) (*service.SessionSummary, error)
	addMovementFn func(ctx context.Context, req service.MovementRequest) (database.CashMovement, error)
}

func (m *mockCashServicer) Open(ctx context.Context, req service.OpenSessionRequest, actor audit.Actor) (database.CashSession, error) {
	return m.openFn(ctx, req, actor)
}
func (m *mockCashServicer) Summary(ctx context.Context, sessionID uuid.UUID) (*service.SessionSummary, error) {
	return m.summaryFn(ctx, sessionID)
}
func (m *mockCashServicer) Close(ctx context.Context, req service.CloseSessionRequest, actor audit.Actor) (*service.SessionSummary, error) {
	return m.closeFn(ctx, req, actor)
}
func (m *mockCashServicer) AddMovement(ctx context.Context, req service.MovementRequest) (database.CashMovement, error) {
	return m.addMovementFn(ctx, req)
}

type mockCashReadStore struct {
	sessions  []database.CashSession
	movements map[uuid.UUID][]database.CashMovement
	openByUsr map[uuid.UUID]database.CashSession
}

func newMockCashReadStore() *mockCashReadStore {
	return &mockCashReadStore{
		movements: make(map[uuid.UUID][]database.CashMovement),
		openByUsr: make(map[uuid.UUID]database.CashSession),
	}
}

func (m *mockCashReadStore) ListCashSessions(_ context.Context, _ database.ListCashSessionsParams) ([]database.CashSession, error) {
	return m.sessions, nil
}
func (m *mockCashReadStore) ListCashMovements(_ context.Context, cashSessionID uuid.UUID) ([]database.CashMovement, error) {
	return m.movements[cashSessionID], nil
}
func (m *mockCashReadStore) GetOpenCashSessionByUser(_ context.Context, userID uuid.UUID) (database.CashSession, error) {
	s, ok := m.openByUsr[userID]
	if !ok {
		return database.CashSession{}, pgx.ErrNoRows
	}
	return s, nil
}

func newCashRouter(svc *mockCashServicer, store *mockCashReadStore) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/cash-sessions", handler.NewCashSessionHandler(svc, store).RegisterRoutes)
	})
	return r
}

func authedCashRequest(t *testing.T, method, target string, body []byte, userID uuid.UUID) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token, err := auth.GenerateToken(testJWTSecret, userID, enum.UserRoleCashier)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestOpenSession_UsesAuthenticatedUser(t *testing.T) {
	userID := uuid.New()
	svc := &mockCashServicer{
		openFn: func(ctx context.Context, req service.OpenSessionRequest, actor audit.Actor) (database.CashSession, error) {
			if req.UserID != userID {
				t.Errorf("user id: got %s, want %s", req.UserID, userID)
			}
			if req.Shift != "MATUTINO" || req.OpeningAmount != "500.00" {
				t.Errorf("unexpected request: %+v", req)
			}
			return database.CashSession{
				ID:            uuid.New(),
				UserID:        userID,
				Shift:         req.Shift,
				OpenedAt:      time.Now(),
				OpeningAmount: makeTestNumeric(t, "500.00"),
			}, nil
		},
	}
	router := newCashRouter(svc, newMockCashReadStore())

	body, _ := json.Marshal(map[string]string{"shift": "MATUTINO", "opening_amount": "500.00"})
	req := authedCashRequest(t, "POST", "/cash-sessions", body, userID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		UserID        string `json:"user_id"`
		OpeningAmount string `json:"opening_amount"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID != userID.String() || resp.OpeningAmount != "500.00" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestOpenSession_AlreadyOpenMapsTo409(t *testing.T) {
	svc := &mockCashServicer{
		openFn: func(ctx context.Context, req service.OpenSessionRequest, actor audit.Actor) (database.CashSession, error) {
			return database.CashSession{}, service.ErrSessionAlreadyOpen
		},
	}
	router := newCashRouter(svc, newMockCashReadStore())

	body, _ := json.Marshal(map[string]string{"shift": "MATUTINO", "opening_amount": "500.00"})
	req := authedCashRequest(t, "POST", "/cash-sessions", body, uuid.New())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestOpenSession_RequiresAuth(t *testing.T) {
	router := newCashRouter(&mockCashServicer{}, newMockCashReadStore())

	body, _ := json.Marshal(map[string]string{"shift": "MATUTINO", "opening_amount": "500.00"})
	req := httptest.NewRequest("POST", "/cash-sessions", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestCurrentSession_NoneOpenMapsTo404(t *testing.T) {
	router := newCashRouter(&mockCashServicer{}, newMockCashReadStore())

	req := authedCashRequest(t, "GET", "/cash-sessions/current", nil, uuid.New())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCloseSession_ReturnsReconciliation(t *testing.T) {
	sessionID := uuid.New()
	svc := &mockCashServicer{
		closeFn: func(ctx context.Context, req service.CloseSessionRequest, actor audit.Actor) (*service.SessionSummary, error) {
			if req.SessionID != sessionID || req.ClosingAmount != "1180.00" {
				t.Errorf("unexpected request: %+v", req)
			}
			session := database.CashSession{
				ID:            sessionID,
				UserID:        uuid.New(),
				Shift:         "VESPERTINO",
				OpenedAt:      time.Now().Add(-8 * time.Hour),
				OpeningAmount: makeTestNumeric(t, "500.00"),
				ClosedAt:      pgtype.Timestamptz{Time: time.Now(), Valid: true},
				ClosingAmount: makeTestNumeric(t, "1180.00"),
			}
			return &service.SessionSummary{
				Session: session,
				PaymentsByMethod: map[string]decimal.Decimal{
					"CASH": mustDecimal(t, "700.00"),
					"CARD": mustDecimal(t, "250.00"),
				},
				PaymentsTotal:      mustDecimal(t, "950.00"),
				CashPayments:       mustDecimal(t, "700.00"),
				MovementIncome:     mustDecimal(t, "0"),
				MovementExpense:    mustDecimal(t, "20.00"),
				MovementAdjustment: mustDecimal(t, "0"),
				ExpectedCash:       mustDecimal(t, "1180.00"),
				ClosingAmount:      mustDecimal(t, "1180.00"),
				Difference:         mustDecimal(t, "0"),
			}, nil
		},
	}
	router := newCashRouter(svc, newMockCashReadStore())

	body, _ := json.Marshal(map[string]string{"closing_amount": "1180.00"})
	req := authedCashRequest(t, "POST", "/cash-sessions/"+sessionID.String()+"/close", body, uuid.New())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		PaymentsByMethod map[string]string `json:"payments_by_method"`
		ExpectedCash     string            `json:"expected_cash"`
		ClosingAmount    *string           `json:"closing_amount"`
		Difference       *string           `json:"difference"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ExpectedCash != "1180.00" {
		t.Errorf("expected_cash: got %q", resp.ExpectedCash)
	}
	if resp.PaymentsByMethod["CASH"] != "700.00" {
		t.Errorf("cash payments: got %q", resp.PaymentsByMethod["CASH"])
	}
	if resp.ClosingAmount == nil || *resp.ClosingAmount != "1180.00" {
		t.Errorf("closing_amount: got %v", resp.ClosingAmount)
	}
	if resp.Difference == nil || *resp.Difference != "0.00" {
		t.Errorf("difference: got %v", resp.Difference)
	}
}

func TestCloseSession_AlreadyClosedMapsTo409(t *testing.T) {
	svc := &mockCashServicer{
		closeFn: func(ctx context.Context, req service.CloseSessionRequest, actor audit.Actor) (*service.SessionSummary, error) {
			return nil, service.ErrSessionClosed
		},
	}
	router := newCashRouter(svc, newMockCashReadStore())

	body, _ := json.Marshal(map[string]string{"closing_amount": "100.00"})
	req := authedCashRequest(t, "POST", "/cash-sessions/"+uuid.NewString()+"/close", body, uuid.New())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestAddMovement_InvalidTypeMapsTo400(t *testing.T) {
	svc := &mockCashServicer{
		addMovementFn: func(ctx context.Context, req service.MovementRequest) (database.CashMovement, error) {
			return database.CashMovement{}, service.ErrInvalidMovementType
		},
	}
	router := newCashRouter(svc, newMockCashReadStore())

	body, _ := json.Marshal(map[string]string{"movement_type": "BOGUS", "amount": "10.00", "concept": "x"})
	req := authedCashRequest(t, "POST", "/cash-sessions/"+uuid.NewString()+"/movements", body, uuid.New())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAddMovement_Success(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()
	svc := &mockCashServicer{
		addMovementFn: func(ctx context.Context, req service.MovementRequest) (database.CashMovement, error) {
			if req.SessionID != sessionID || req.CreatedBy != userID {
				t.Errorf("unexpected request: %+v", req)
			}
			return database.CashMovement{
				ID:            uuid.New(),
				CashSessionID: sessionID,
				MovementType:  req.MovementType,
				Amount:        makeTestNumeric(t, req.Amount),
				Concept:       req.Concept,
				OccurredAt:    time.Now(),
			}, nil
		},
	}
	router := newCashRouter(svc, newMockCashReadStore())

	body, _ := json.Marshal(map[string]string{
		"movement_type": "EXPENSE",
		"amount":        "35.50",
		"concept":       "detergente",
	})
	req := authedCashRequest(t, "POST", "/cash-sessions/"+sessionID.String()+"/movements", body, userID)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		MovementType string `json:"movement_type"`
		Amount       string `json:"amount"`
		Concept      string `json:"concept"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MovementType != "EXPENSE" || resp.Amount != "35.50" || resp.Concept != "detergente" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
