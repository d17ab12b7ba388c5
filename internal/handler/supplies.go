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
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/lavanderia-pos/api/internal/middleware"
	"github.com/lavanderia-pos/api/internal/service"
)

// StockServicer defines the service methods needed by supply handlers.
// Satisfied by *service.StockService; narrow interface for testability.
type StockServicer interface {
	CreateSupply(ctx context.Context, req service.CreateSupplyRequest) (database.Supply, error)
	CreateMovement(ctx context.Context, req service.MovementInput, actor audit.Actor) (database.InventoryMovement, database.Supply, error)
	UpdateMovement(ctx context.Context, movementID uuid.UUID, req service.MovementInput, actor audit.Actor) (database.InventoryMovement, error)
	DeleteMovement(ctx context.Context, movementID uuid.UUID, actor audit.Actor) error
}

// SupplyReadStore defines the database methods needed by supply read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SupplyReadStore interface {
	GetSupply(ctx context.Context, id uuid.UUID) (database.Supply, error)
	ListSupplies(ctx context.Context) ([]database.Supply, error)
	ListLowStockSupplies(ctx context.Context) ([]database.Supply, error)
	ListInventoryMovements(ctx context.Context, supplyID uuid.UUID) ([]database.InventoryMovement, error)
}

// SupplyHandler handles supply and stock movement endpoints.
type SupplyHandler struct {
	svc   StockServicer
	store SupplyReadStore
}

// NewSupplyHandler creates a new SupplyHandler.
func NewSupplyHandler(svc StockServicer, store SupplyReadStore) *SupplyHandler {
	return &SupplyHandler{svc: svc, store: store}
}

// RegisterRoutes registers supply endpoints on the given Chi router.
// Cashiers may record movements (daily consumption) but supply setup
// and ledger corrections require a manager.
func (h *SupplyHandler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager)

	r.With(admin).Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/low-stock", h.LowStock)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/movements", h.CreateMovement)
	r.Get("/{id}/movements", h.ListMovements)
	r.With(admin).Patch("/movements/{movementID}", h.UpdateMovement)
	r.With(admin).Delete("/movements/{movementID}", h.DeleteMovement)
}

// --- Request / Response types ---

type createSupplyRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	MinStock string `json:"min_stock"`
	Notes    string `json:"notes"`
}

type stockMovementRequest struct {
	SupplyID     string `json:"supply_id"`
	MovementType string `json:"movement_type"`
	Quantity     string `json:"quantity"`
	UnitCost     string `json:"unit_cost"`
	Concept      string `json:"concept"`
	Notes        string `json:"notes"`
}

type supplyResponse struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	MinStock     string    `json:"min_stock"`
	CurrentStock string    `json:"current_stock"`
	IsActive     bool      `json:"is_active"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type stockMovementResponse struct {
	ID           uuid.UUID `json:"id"`
	SupplyID     uuid.UUID `json:"supply_id"`
	MovementType string    `json:"movement_type"`
	Quantity     string    `json:"quantity"`
	UnitCost     string    `json:"unit_cost"`
	Concept      string    `json:"concept"`
	Notes        *string   `json:"notes"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type movementWithSupplyResponse struct {
	Movement stockMovementResponse `json:"movement"`
	Supply   supplyResponse        `json:"supply"`
}

// --- Handlers ---

// Create registers a supply with zero stock.
func (h *SupplyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSupplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" || req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code, name and unit are required"})
		return
	}

	supply, err := h.svc.CreateSupply(r.Context(), service.CreateSupplyRequest{
		Code:     req.Code,
		Name:     req.Name,
		Unit:     req.Unit,
		MinStock: req.MinStock,
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeStockError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSupplyResponse(supply))
}

// List returns all supplies.
func (h *SupplyHandler) List(w http.ResponseWriter, r *http.Request) {
	supplies, err := h.store.ListSupplies(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]supplyResponse, 0, len(supplies))
	for _, s := range supplies {
		resp = append(resp, toSupplyResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// LowStock returns supplies at or below their minimum stock.
func (h *SupplyHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	supplies, err := h.store.ListLowStockSupplies(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]supplyResponse, 0, len(supplies))
	for _, s := range supplies {
		resp = append(resp, toSupplyResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one supply.
func (h *SupplyHandler) Get(w http.ResponseWriter, r *http.Request) {
	supplyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supply id"})
		return
	}

	supply, err := h.store.GetSupply(r.Context(), supplyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "supply not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSupplyResponse(supply))
}

// CreateMovement records a stock movement against a supply.
func (h *SupplyHandler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	supplyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supply id"})
		return
	}

	var req stockMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	input := service.MovementInput{
		SupplyID:     supplyID,
		MovementType: req.MovementType,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
		Concept:      req.Concept,
		Notes:        req.Notes,
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		input.CreatedBy = claims.UserID
	}

	movement, supply, err := h.svc.CreateMovement(r.Context(), input, actorFromRequest(r))
	if err != nil {
		h.writeStockError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, movementWithSupplyResponse{
		Movement: toStockMovementResponse(movement),
		Supply:   toSupplyResponse(supply),
	})
}

// ListMovements returns the movement history of one supply.
func (h *SupplyHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	supplyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supply id"})
		return
	}

	movements, err := h.store.ListInventoryMovements(r.Context(), supplyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]stockMovementResponse, 0, len(movements))
	for _, m := range movements {
		resp = append(resp, toStockMovementResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateMovement corrects a recorded movement, repricing the stock delta.
func (h *SupplyHandler) UpdateMovement(w http.ResponseWriter, r *http.Request) {
	movementID, err := uuid.Parse(chi.URLParam(r, "movementID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid movement id"})
		return
	}

	var req stockMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	supplyID, err := uuid.Parse(req.SupplyID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supply_id"})
		return
	}

	movement, err := h.svc.UpdateMovement(r.Context(), movementID, service.MovementInput{
		SupplyID:     supplyID,
		MovementType: req.MovementType,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
		Concept:      req.Concept,
		Notes:        req.Notes,
	}, actorFromRequest(r))
	if err != nil {
		h.writeStockError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStockMovementResponse(movement))
}

// DeleteMovement removes a movement and reverses its stock effect.
func (h *SupplyHandler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	movementID, err := uuid.Parse(chi.URLParam(r, "movementID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid movement id"})
		return
	}

	if err := h.svc.DeleteMovement(r.Context(), movementID, actorFromRequest(r)); err != nil {
		h.writeStockError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *SupplyHandler) writeStockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSupplyNotFound),
		errors.Is(err, service.ErrMovementNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStockQuantity),
		errors.Is(err, service.ErrInvalidStockMovement),
		errors.Is(err, service.ErrInvalidMinStock),
		errors.Is(err, service.ErrInvalidUnitCost):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toSupplyResponse(s database.Supply) supplyResponse {
	return supplyResponse{
		ID:           s.ID,
		Code:         s.Code,
		Name:         s.Name,
		Unit:         s.Unit,
		MinStock:     numericToString(s.MinStock),
		CurrentStock: numericToString(s.CurrentStock),
		IsActive:     s.IsActive,
		Notes:        textPtr(s.Notes),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toStockMovementResponse(m database.InventoryMovement) stockMovementResponse {
	return stockMovementResponse{
		ID:           m.ID,
		SupplyID:     m.SupplyID,
		MovementType: m.MovementType,
		Quantity:     numericToString(m.Quantity),
		UnitCost:     numericToString(m.UnitCost),
		Concept:      m.Concept,
		Notes:        textPtr(m.Notes),
		OccurredAt:   m.OccurredAt,
	}
}
