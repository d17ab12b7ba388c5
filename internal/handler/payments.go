package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/middleware"
	"github.com/lavanderia-pos/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	Create(ctx context.Context, req service.CreatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error)
	Update(ctx context.Context, paymentID uuid.UUID, req service.UpdatePaymentRequest, actor audit.Actor) (database.Payment, database.Order, error)
	Void(ctx context.Context, paymentID uuid.UUID, actor audit.Actor) (database.Payment, database.Order, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
	hub Broadcaster
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, hub Broadcaster) *PaymentHandler {
	return &PaymentHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/void", h.Void)
}

// --- Request / Response types ---

type createPaymentRequest struct {
	OrderID   string `json:"order_id"`
	Method    string `json:"method"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

type updatePaymentRequest struct {
	Method    string `json:"method"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	CashSessionID *string   `json:"cash_session_id"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
	Reference     *string   `json:"reference"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

type paymentWithOrderResponse struct {
	Payment paymentResponse `json:"payment"`
	Order   orderResponse   `json:"order"`
}

// --- Handlers ---

// Create registers a payment against an order.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}

	svcReq := service.CreatePaymentRequest{
		OrderID:   orderID,
		Method:    req.Method,
		Amount:    req.Amount,
		Reference: req.Reference,
		Notes:     req.Notes,
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		svcReq.CapturedBy = claims.UserID
	}

	payment, order, err := h.svc.Create(r.Context(), svcReq, actorFromRequest(r))
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	h.broadcastOrder(order)
	writeJSON(w, http.StatusCreated, paymentWithOrderResponse{
		Payment: toPaymentResponse(payment),
		Order:   toOrderResponse(order),
	})
}

// Update edits a payment's method, amount, reference or notes.
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payment, order, err := h.svc.Update(r.Context(), paymentID, service.UpdatePaymentRequest{
		Method:    req.Method,
		Amount:    req.Amount,
		Reference: req.Reference,
		Notes:     req.Notes,
	}, actorFromRequest(r))
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	h.broadcastOrder(order)
	writeJSON(w, http.StatusOK, paymentWithOrderResponse{
		Payment: toPaymentResponse(payment),
		Order:   toOrderResponse(order),
	})
}

// Void marks a payment void and restores the order balance.
func (h *PaymentHandler) Void(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	payment, order, err := h.svc.Void(r.Context(), paymentID, actorFromRequest(r))
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	h.broadcastOrder(order)
	writeJSON(w, http.StatusOK, paymentWithOrderResponse{
		Payment: toPaymentResponse(payment),
		Order:   toOrderResponse(order),
	})
}

// --- Helpers ---

func (h *PaymentHandler) broadcastOrder(order database.Order) {
	oh := OrderHandler{hub: h.hub}
	oh.broadcastOrder(order)
}

func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentAlreadyVoid),
		errors.Is(err, service.ErrPaymentOrderTerminal):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidPaymentMethod):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		CashSessionID: uuidPtr(p.CashSessionID),
		Method:        p.Method,
		Status:        p.Status,
		Amount:        numericToString(p.Amount),
		PaidAt:        p.PaidAt,
		Reference:     textPtr(p.Reference),
		Notes:         textPtr(p.Notes),
		CreatedAt:     p.CreatedAt,
	}
}
