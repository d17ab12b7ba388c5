package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/handler"
	"github.com/lavanderia-pos/api/internal/service"
)

type mockPaymentServicer struct {
	createFn func(ctx context.Context, req service.CreatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error)
	updateFn func(ctx context.Context, paymentID uuid.UUID, req service.UpdatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error)
	voidFn   func(ctx context.Context, paymentID uuid.UUID, actor audit.Actor) (database.Payment, database.Order, error)
}

func (m *mockPaymentServicer) Create(ctx context.Context, req service.CreatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error) {
	return m.createFn(ctx, req, actor)
}
func (m *mockPaymentServicer) Update(ctx context.Context, paymentID uuid.UUID, req service.UpdatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error) {
	return m.updateFn(ctx, paymentID, req, actor)
}
func (m *mockPaymentServicer) Void(ctx context.Context, paymentID uuid.UUID, actor audit.Actor) (database.Payment, database.Order, error) {
	return m.voidFn(ctx, paymentID, actor)
}

func newPaymentRouter(svc *mockPaymentServicer, hub *recordingHub) chi.Router {
	r := chi.NewRouter()
	r.Route("/payments", handler.NewPaymentHandler(svc, hub).RegisterRoutes)
	return r
}

func TestCreatePayment_Success(t *testing.T) {
	orderID := uuid.New()
	svc := &mockPaymentServicer{
		createFn: func(ctx context.Context, req service.CreatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error) {
			if req.OrderID != orderID || req.Method != "CASH" || req.Amount != "50.00" {
				t.Errorf("unexpected request: %+v", req)
			}
			payment := database.Payment{
				ID:      uuid.New(),
				OrderID: orderID,
				Method:  "CASH",
				Status:  "APPLIED",
				Amount:  makeTestNumeric(t, "50.00"),
			}
			order := sampleOrderForTest(t)
			order.PaidAmount = makeTestNumeric(t, "50.00")
			order.Balance = makeTestNumeric(t, "66.00")
			return payment, order, nil
		},
	}
	hub := &recordingHub{}
	router := newPaymentRouter(svc, hub)

	body, _ := json.Marshal(map[string]string{
		"order_id": orderID.String(),
		"method":   "CASH",
		"amount":   "50.00",
	})
	req := httptest.NewRequest("POST", "/payments", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		Payment struct {
			Method string `json:"method"`
			Amount string `json:"amount"`
		} `json:"payment"`
		Order struct {
			Balance string `json:"balance"`
		} `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Payment.Amount != "50.00" {
		t.Errorf("payment amount: got %q", resp.Payment.Amount)
	}
	if resp.Order.Balance != "66.00" {
		t.Errorf("order balance: got %q", resp.Order.Balance)
	}

	if len(hub.events) != 1 || hub.events[0].Type != "order.updated" {
		t.Fatalf("expected order.updated broadcast, got %+v", hub.events)
	}
}

func TestCreatePayment_InvalidAmountMapsTo400(t *testing.T) {
	svc := &mockPaymentServicer{
		createFn: func(ctx context.Context, req service.CreatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error) {
			return database.Payment{}, database.Order{}, service.ErrInvalidAmount
		},
	}
	router := newPaymentRouter(svc, &recordingHub{})

	body, _ := json.Marshal(map[string]string{
		"order_id": uuid.NewString(),
		"method":   "CASH",
		"amount":   "-1",
	})
	req := httptest.NewRequest("POST", "/payments", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestVoidPayment_AlreadyVoidMapsTo409(t *testing.T) {
	svc := &mockPaymentServicer{
		voidFn: func(ctx context.Context, paymentID uuid.UUID, actor audit.Actor) (database.Payment, database.Order, error) {
			return database.Payment{}, database.Order{}, service.ErrPaymentAlreadyVoid
		},
	}
	router := newPaymentRouter(svc, &recordingHub{})

	req := httptest.NewRequest("POST", "/payments/"+uuid.NewString()+"/void", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUpdatePayment_NotFoundMapsTo404(t *testing.T) {
	svc := &mockPaymentServicer{
		updateFn: func(ctx context.Context, paymentID uuid.UUID, req service.UpdatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error) {
			return database.Payment{}, database.Order{}, service.ErrPaymentNotFound
		},
	}
	router := newPaymentRouter(svc, &recordingHub{})

	body, _ := json.Marshal(map[string]string{"amount": "10.00"})
	req := httptest.NewRequest("PATCH", "/payments/"+uuid.NewString(), bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestVoidPayment_TerminalOrderMapsTo409(t *testing.T) {
	svc := &mockPaymentServicer{
		voidFn: func(ctx context.Context, paymentID uuid.UUID, actor audit.Actor) (database.Payment, database.Order, error) {
			return database.Payment{}, database.Order{}, service.ErrPaymentOrderTerminal
		},
	}
	router := newPaymentRouter(svc, &recordingHub{})

	req := httptest.NewRequest("POST", "/payments/"+uuid.NewString()+"/void", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}
