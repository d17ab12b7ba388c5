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

// CatalogServicer defines the service methods needed by catalog handlers.
// Satisfied by *service.CatalogService; narrow interface for testability.
type CatalogServicer interface {
	CreateService(ctx context.Context, req service.CreateServiceRequest) (database.Service, error)
	UpdateService(ctx context.Context, serviceID uuid.UUID, req service.UpdateServiceRequest, actor audit.Actor) (database.Service, error)
	CreatePromotion(ctx context.Context, req service.CreatePromotionRequest) (database.ServicePromotion, error)
}

// CatalogReadStore defines the database methods needed by catalog read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogReadStore interface {
	ListServices(ctx context.Context) ([]database.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (database.Service, error)
	ListServicePriceHistory(ctx context.Context, serviceID uuid.UUID) ([]database.ServicePriceHistory, error)
	ListPromotionsForService(ctx context.Context, serviceID uuid.UUID) ([]database.ServicePromotion, error)
	DeactivateServicePromotion(ctx context.Context, id uuid.UUID) error
}

// ServiceHandler handles service catalog endpoints.
type ServiceHandler struct {
	svc   CatalogServicer
	store CatalogReadStore
}

// NewServiceHandler creates a new ServiceHandler.
func NewServiceHandler(svc CatalogServicer, store CatalogReadStore) *ServiceHandler {
	return &ServiceHandler{svc: svc, store: store}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
// Catalog mutations are manager territory; cashiers only read.
func (h *ServiceHandler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleManager)

	r.With(admin).Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(admin).Patch("/{id}", h.Update)
	r.Get("/{id}/price-history", h.PriceHistory)
	r.With(admin).Post("/{id}/promotions", h.CreatePromotion)
	r.Get("/{id}/promotions", h.ListPromotions)
	r.With(admin).Delete("/{id}/promotions/{promoID}", h.DeactivatePromotion)
}

// --- Request / Response types ---

type createServiceRequest struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	PricingMode     string `json:"pricing_mode"`
	UnitPrice       string `json:"unit_price"`
	DefaultTaxRate  string `json:"default_tax_rate"`
	TurnaroundHours int32  `json:"turnaround_hours"`
}

type updateServiceRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	PricingMode     string `json:"pricing_mode"`
	UnitPrice       string `json:"unit_price"`
	DefaultTaxRate  string `json:"default_tax_rate"`
	TurnaroundHours *int32 `json:"turnaround_hours"`
	IsActive        *bool  `json:"is_active"`
	PriceReason     string `json:"price_reason"`
}

type createPromotionRequest struct {
	Name          string `json:"name"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
}

type serviceResponse struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	Category        string    `json:"category"`
	PricingMode     string    `json:"pricing_mode"`
	UnitPrice       string    `json:"unit_price"`
	DefaultTaxRate  string    `json:"default_tax_rate"`
	TurnaroundHours int32     `json:"turnaround_hours"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type priceHistoryResponse struct {
	ID            uuid.UUID `json:"id"`
	PreviousPrice string    `json:"previous_price"`
	NewPrice      string    `json:"new_price"`
	ChangedBy     *string   `json:"changed_by"`
	Reason        *string   `json:"reason"`
	ChangedAt     time.Time `json:"changed_at"`
}

type promotionResponse struct {
	ID            uuid.UUID `json:"id"`
	ServiceID     uuid.UUID `json:"service_id"`
	Name          string    `json:"name"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue string    `json:"discount_value"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	IsActive      bool      `json:"is_active"`
}

// --- Handlers ---

// Create adds a service to the catalog.
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and name are required"})
		return
	}

	svc, err := h.svc.CreateService(r.Context(), service.CreateServiceRequest{
		Code:            req.Code,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		PricingMode:     req.PricingMode,
		UnitPrice:       req.UnitPrice,
		DefaultTaxRate:  req.DefaultTaxRate,
		TurnaroundHours: req.TurnaroundHours,
	})
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toServiceResponse(svc))
}

// List returns the full catalog.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.ListServices(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]serviceResponse, 0, len(services))
	for _, svc := range services {
		resp = append(resp, toServiceResponse(svc))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one catalog entry.
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service id"})
		return
	}

	svc, err := h.store.GetService(r.Context(), serviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "service not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toServiceResponse(svc))
}

// Update edits a catalog entry. Price changes are journaled.
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service id"})
		return
	}

	var req updateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svc, err := h.svc.UpdateService(r.Context(), serviceID, service.UpdateServiceRequest{
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		PricingMode:     req.PricingMode,
		UnitPrice:       req.UnitPrice,
		DefaultTaxRate:  req.DefaultTaxRate,
		TurnaroundHours: req.TurnaroundHours,
		IsActive:        req.IsActive,
		PriceReason:     req.PriceReason,
	}, actorFromRequest(r))
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toServiceResponse(svc))
}

// PriceHistory returns the price change journal of a service.
func (h *ServiceHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service id"})
		return
	}

	history, err := h.store.ListServicePriceHistory(r.Context(), serviceID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]priceHistoryResponse, 0, len(history))
	for _, entry := range history {
		resp = append(resp, priceHistoryResponse{
			ID:            entry.ID,
			PreviousPrice: numericToString(entry.PreviousPrice),
			NewPrice:      numericToString(entry.NewPrice),
			ChangedBy:     uuidPtr(entry.ChangedBy),
			Reason:        textPtr(entry.Reason),
			ChangedAt:     entry.ChangedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreatePromotion attaches a time-boxed discount to a service.
func (h *ServiceHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service id"})
		return
	}

	var req createPromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid starts_at"})
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ends_at"})
		return
	}

	svcReq := service.CreatePromotionRequest{
		ServiceID:     serviceID,
		Name:          req.Name,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		StartsAt:      startsAt,
		EndsAt:        endsAt,
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		svcReq.CreatedBy = claims.UserID
	}

	promo, err := h.svc.CreatePromotion(r.Context(), svcReq)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPromotionResponse(promo))
}

// ListPromotions returns all promotions of a service.
func (h *ServiceHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	serviceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service id"})
		return
	}

	promos, err := h.store.ListPromotionsForService(r.Context(), serviceID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]promotionResponse, 0, len(promos))
	for _, p := range promos {
		resp = append(resp, toPromotionResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeactivatePromotion turns a promotion off.
func (h *ServiceHandler) DeactivatePromotion(w http.ResponseWriter, r *http.Request) {
	promoID, err := uuid.Parse(chi.URLParam(r, "promoID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion id"})
		return
	}

	if err := h.store.DeactivateServicePromotion(r.Context(), promoID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *ServiceHandler) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrServiceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidPricingMode),
		errors.Is(err, service.ErrInvalidUnitPrice),
		errors.Is(err, service.ErrInvalidTaxRate),
		errors.Is(err, service.ErrInvalidPromoWindow),
		errors.Is(err, service.ErrInvalidDiscount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toServiceResponse(svc database.Service) serviceResponse {
	return serviceResponse{
		ID:              svc.ID,
		Code:            svc.Code,
		Name:            svc.Name,
		Description:     textPtr(svc.Description),
		Category:        svc.Category,
		PricingMode:     svc.PricingMode,
		UnitPrice:       numericToString(svc.UnitPrice),
		DefaultTaxRate:  numericToString(svc.DefaultTaxRate),
		TurnaroundHours: svc.TurnaroundHours,
		IsActive:        svc.IsActive,
		CreatedAt:       svc.CreatedAt,
		UpdatedAt:       svc.UpdatedAt,
	}
}

func toPromotionResponse(p database.ServicePromotion) promotionResponse {
	return promotionResponse{
		ID:            p.ID,
		ServiceID:     p.ServiceID,
		Name:          p.Name,
		DiscountType:  p.DiscountType,
		DiscountValue: numericToString(p.DiscountValue),
		StartsAt:      p.StartsAt,
		EndsAt:        p.EndsAt,
		IsActive:      p.IsActive,
	}
}
