package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/middleware"
	"github.com/lavanderia-pos/api/internal/service"
	"github.com/lavanderia-pos/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	AddItem(ctx context.Context, orderID uuid.UUID, item service.CreateOrderItemRequest) (database.OrderItem, database.Order, error)
	UpdateItem(ctx context.Context, orderID, itemID uuid.UUID, req service.UpdateItemRequest) (database.OrderItem, database.Order, error)
	DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) (database.Order, error)
	SetAreaStatus(ctx context.Context, orderID uuid.UUID, area, status string) (database.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor audit.Actor) (database.Order, error)
}

// OrderReadStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// Broadcaster publishes events to connected WebSocket clients.
// Satisfied by *ws.Hub; nil disables broadcasting.
type Broadcaster interface {
	Broadcast(topic string, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReadStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderReadStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{itemID}", h.UpdateItem)
	r.Delete("/{id}/items/{itemID}", h.DeleteItem)
	r.Patch("/{id}/areas/{area}", h.SetAreaStatus)
	r.Post("/{id}/deliver", h.Deliver)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerID string                   `json:"customer_id"`
	PromisedAt string                   `json:"promised_at"`
	Notes      string                   `json:"notes"`
	Items      []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ServiceID   string `json:"service_id"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
}

type updateOrderItemRequest struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TaxRate     string `json:"tax_rate"`
}

type setAreaStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	Folio         string              `json:"folio"`
	CustomerID    *string             `json:"customer_id"`
	Status        string              `json:"status"`
	WashStatus    string              `json:"wash_status"`
	DryStatus     string              `json:"dry_status"`
	IroningStatus string              `json:"ironing_status"`
	ReceivedAt    time.Time           `json:"received_at"`
	PromisedAt    *time.Time          `json:"promised_at"`
	DeliveredAt   *time.Time          `json:"delivered_at"`
	Notes         *string             `json:"notes"`
	Subtotal      string              `json:"subtotal"`
	TaxAmount     string              `json:"tax_amount"`
	Total         string              `json:"total"`
	PaidAmount    string              `json:"paid_amount"`
	Balance       string              `json:"balance"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
	Payments      []paymentResponse   `json:"payments,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   uuid.UUID `json:"service_id"`
	Description string    `json:"description"`
	PricingMode string    `json:"pricing_mode"`
	Quantity    string    `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	TaxRate     string    `json:"tax_rate"`
	Subtotal    string    `json:"subtotal"`
	TaxAmount   string    `json:"tax_amount"`
	Total       string    `json:"total"`
}

// --- Handlers ---

// Create registers a new order with its items.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.CreateOrderRequest{
		CustomerID: req.CustomerID,
		PromisedAt: req.PromisedAt,
		Notes:      req.Notes,
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		svcReq.CreatedBy = claims.UserID
	}
	for _, item := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateOrderItemRequest{
			ServiceID:   item.ServiceID,
			Description: item.Description,
			Quantity:    item.Quantity,
		})
	}

	result, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.broadcastOrder(result.Order)
	resp := toOrderResponse(result.Order)
	for _, item := range result.Items {
		resp.Items = append(resp.Items, toOrderItemResponse(item))
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List returns orders, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one order with its items and payments.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(order)
	for _, item := range items {
		resp.Items = append(resp.Items, toOrderItemResponse(item))
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddItem appends a line item to an order.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req createOrderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, order, err := h.svc.AddItem(r.Context(), orderID, service.CreateOrderItemRequest{
		ServiceID:   req.ServiceID,
		Description: req.Description,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.broadcastOrder(order)
	resp := toOrderResponse(order)
	resp.Items = append(resp.Items, toOrderItemResponse(item))
	writeJSON(w, http.StatusCreated, resp)
}

// UpdateItem edits a line item and recomputes the order.
func (h *OrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	var req updateOrderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, order, err := h.svc.UpdateItem(r.Context(), orderID, itemID, service.UpdateItemRequest{
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TaxRate:     req.TaxRate,
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.broadcastOrder(order)
	resp := toOrderResponse(order)
	resp.Items = append(resp.Items, toOrderItemResponse(item))
	writeJSON(w, http.StatusOK, resp)
}

// DeleteItem removes a line item and recomputes the order.
func (h *OrderHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	order, err := h.svc.DeleteItem(r.Context(), orderID, itemID)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.broadcastOrder(order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SetAreaStatus advances one production area (wash, dry, ironing).
func (h *OrderHandler) SetAreaStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	area := chi.URLParam(r, "area")

	var req setAreaStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.SetAreaStatus(r.Context(), orderID, area, req.Status)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.broadcastOrder(order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Deliver hands the order to the customer.
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.svc.Deliver(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.broadcastOrder(order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel voids an order that has not entered production.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.svc.Cancel(r.Context(), orderID, actorFromRequest(r))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.broadcastOrder(order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Helpers ---

func (h *OrderHandler) broadcastOrder(order database.Order) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"id":             order.ID,
		"folio":          order.Folio,
		"status":         order.Status,
		"wash_status":    order.WashStatus,
		"dry_status":     order.DryStatus,
		"ironing_status": order.IroningStatus,
		"balance":        numericToString(order.Balance),
	})
	if err != nil {
		return
	}
	h.hub.Broadcast("production", ws.Event{Type: "order.updated", Payload: payload})
}

func (h *OrderHandler) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrServiceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderTerminal),
		errors.Is(err, service.ErrCancelNotReceived),
		errors.Is(err, service.ErrDeliverNotReady),
		errors.Is(err, service.ErrOutstandingBalance),
		errors.Is(err, service.ErrAreaNotApplicable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isOrderValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidUnitPrice) ||
		errors.Is(err, service.ErrInvalidTaxRate) ||
		errors.Is(err, service.ErrInvalidServiceID) ||
		errors.Is(err, service.ErrInvalidCustomerID) ||
		errors.Is(err, service.ErrInvalidArea) ||
		errors.Is(err, service.ErrInvalidAreaStatus)
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		Folio:         o.Folio,
		CustomerID:    uuidPtr(o.CustomerID),
		Status:        o.Status,
		WashStatus:    o.WashStatus,
		DryStatus:     o.DryStatus,
		IroningStatus: o.IroningStatus,
		ReceivedAt:    o.ReceivedAt,
		Notes:         textPtr(o.Notes),
		Subtotal:      numericToString(o.Subtotal),
		TaxAmount:     numericToString(o.TaxAmount),
		Total:         numericToString(o.Total),
		PaidAmount:    numericToString(o.PaidAmount),
		Balance:       numericToString(o.Balance),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.PromisedAt.Valid {
		t := o.PromisedAt.Time
		resp.PromisedAt = &t
	}
	if o.DeliveredAt.Valid {
		t := o.DeliveredAt.Time
		resp.DeliveredAt = &t
	}
	return resp
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:          item.ID,
		ServiceID:   item.ServiceID,
		Description: item.Description,
		PricingMode: item.PricingMode,
		Quantity:    numericToString(item.Quantity),
		UnitPrice:   numericToString(item.UnitPrice),
		TaxRate:     numericToString(item.TaxRate),
		Subtotal:    numericToString(item.Subtotal),
		TaxAmount:   numericToString(item.TaxAmount),
		Total:       numericToString(item.Total),
	}
}
