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
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/auth"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/enum"
	"github.com/lavanderia-pos/api/internal/handler"
	"github.com/lavanderia-pos/api/internal/middleware"
	"github.com/lavanderia-pos/api/internal/service"
)

type mockCatalogServicer struct {
	createServiceFn   func(ctx context.Context, req service.CreateServiceRequest) (database.Service, error)
	updateServiceFn   func(ctx context.Context, serviceID uuid.UUID, req service.UpdateServiceRequest, actor audit.Actor) (database.Service, error)
	createPromotionFn func(ctx context.Context, req service.CreatePromotionRequest) (database.ServicePromotion, error)
}

func (m *mockCatalogServicer) CreateService(ctx context.Context, req service.CreateServiceRequest) (database.Service, error) {
	return m.createServiceFn(ctx, req)
}
func (m *mockCatalogServicer) UpdateService(ctx context.Context, serviceID uuid.UUID, req service.UpdateServiceRequest, actor audit.Actor) (database.Service, error) {
	return m.updateServiceFn(ctx, serviceID, req, actor)
}
func (m *mockCatalogServicer) CreatePromotion(ctx context.Context, req service.CreatePromotionRequest) (database.ServicePromotion, error) {
	return m.createPromotionFn(ctx, req)
}

type mockCatalogReadStore struct {
	services    map[uuid.UUID]database.Service
	history     map[uuid.UUID][]database.ServicePriceHistory
	promotions  map[uuid.UUID][]database.ServicePromotion
	deactivated []uuid.UUID
}

func newMockCatalogReadStore() *mockCatalogReadStore {
	return &mockCatalogReadStore{
		services:   make(map[uuid.UUID]database.Service),
		history:    make(map[uuid.UUID][]database.ServicePriceHistory),
		promotions: make(map[uuid.UUID][]database.ServicePromotion),
	}
}

func (m *mockCatalogReadStore) ListServices(_ context.Context) ([]database.Service, error) {
	var result []database.Service
	for _, s := range m.services {
		result = append(result, s)
	}
	return result, nil
}
func (m *mockCatalogReadStore) GetService(_ context.Context, id uuid.UUID) (database.Service, error) {
	s, ok := m.services[id]
	if !ok {
		return database.Service{}, pgx.ErrNoRows
	}
	return s, nil
}
func (m *mockCatalogReadStore) ListServicePriceHistory(_ context.Context, serviceID uuid.UUID) ([]database.ServicePriceHistory, error) {
	return m.history[serviceID], nil
}
func (m *mockCatalogReadStore) ListPromotionsForService(_ context.Context, serviceID uuid.UUID) ([]database.ServicePromotion, error) {
	return m.promotions[serviceID], nil
}
func (m *mockCatalogReadStore) DeactivateServicePromotion(_ context.Context, id uuid.UUID) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newCatalogRouter(svc *mockCatalogServicer, store *mockCatalogReadStore) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/services", handler.NewServiceHandler(svc, store).RegisterRoutes)
	})
	return r
}

// roleRequest builds a request carrying a valid bearer token for a user
// with the given role.
func roleRequest(t *testing.T, method, target string, body []byte, role string) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token, err := auth.GenerateToken(testJWTSecret, uuid.New(), role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCreateService_Success(t *testing.T) {
	svc := &mockCatalogServicer{
		createServiceFn: func(ctx context.Context, req service.CreateServiceRequest) (database.Service, error) {
			if req.Code != "WASH-KG" || req.PricingMode != "BY_WEIGHT" {
				t.Errorf("unexpected request: %+v", req)
			}
			return database.Service{
				ID:             uuid.New(),
				Code:           req.Code,
				Name:           req.Name,
				Category:       req.Category,
				PricingMode:    req.PricingMode,
				UnitPrice:      makeTestNumeric(t, "45.00"),
				DefaultTaxRate: makeTestNumeric(t, "16.00"),
				IsActive:       true,
			}, nil
		},
	}
	router := newCatalogRouter(svc, newMockCatalogReadStore())

	body, _ := json.Marshal(map[string]any{
		"code":             "WASH-KG",
		"name":             "Lavado por kilo",
		"category":         "WASH",
		"pricing_mode":     "BY_WEIGHT",
		"unit_price":       "45.00",
		"default_tax_rate": "16.00",
	})
	req := roleRequest(t, "POST", "/services", body, enum.UserRoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		Code      string `json:"code"`
		UnitPrice string `json:"unit_price"`
		IsActive  bool   `json:"is_active"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "WASH-KG" || resp.UnitPrice != "45.00" || !resp.IsActive {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateService_CashierForbidden(t *testing.T) {
	router := newCatalogRouter(&mockCatalogServicer{}, newMockCatalogReadStore())

	body, _ := json.Marshal(map[string]string{
		"code": "X", "name": "X", "category": "WASH", "pricing_mode": "FIXED",
		"unit_price": "1.00", "default_tax_rate": "0",
	})
	req := roleRequest(t, "POST", "/services", body, enum.UserRoleCashier)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCreateService_MissingCode(t *testing.T) {
	router := newCatalogRouter(&mockCatalogServicer{}, newMockCatalogReadStore())

	body, _ := json.Marshal(map[string]string{"name": "Lavado"})
	req := roleRequest(t, "POST", "/services", body, enum.UserRoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateService_InvalidCategoryMapsTo400(t *testing.T) {
	svc := &mockCatalogServicer{
		createServiceFn: func(ctx context.Context, req service.CreateServiceRequest) (database.Service, error) {
			return database.Service{}, service.ErrInvalidCategory
		},
	}
	router := newCatalogRouter(svc, newMockCatalogReadStore())

	body, _ := json.Marshal(map[string]string{
		"code": "X", "name": "X", "category": "FOOD", "pricing_mode": "FIXED",
		"unit_price": "1.00", "default_tax_rate": "0",
	})
	req := roleRequest(t, "POST", "/services", body, enum.UserRoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateService_NotFoundMapsTo404(t *testing.T) {
	svc := &mockCatalogServicer{
		updateServiceFn: func(ctx context.Context, serviceID uuid.UUID, req service.UpdateServiceRequest, actor audit.Actor) (database.Service, error) {
			return database.Service{}, service.ErrServiceNotFound
		},
	}
	router := newCatalogRouter(svc, newMockCatalogReadStore())

	body, _ := json.Marshal(map[string]string{"unit_price": "50.00"})
	req := roleRequest(t, "PATCH", "/services/"+uuid.NewString(), body, enum.UserRoleManager)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetService_NotFound(t *testing.T) {
	router := newCatalogRouter(&mockCatalogServicer{}, newMockCatalogReadStore())

	req := roleRequest(t, "GET", "/services/"+uuid.NewString(), nil, enum.UserRoleCashier)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestPriceHistory_ReturnsJournal(t *testing.T) {
	store := newMockCatalogReadStore()
	serviceID := uuid.New()
	store.history[serviceID] = []database.ServicePriceHistory{{
		ID:            uuid.New(),
		ServiceID:     serviceID,
		PreviousPrice: makeTestNumeric(t, "45.00"),
		NewPrice:      makeTestNumeric(t, "50.00"),
		ChangedAt:     time.Now(),
	}}
	router := newCatalogRouter(&mockCatalogServicer{}, store)

	req := roleRequest(t, "GET", "/services/"+serviceID.String()+"/price-history", nil, enum.UserRoleCashier)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp []struct {
		PreviousPrice string `json:"previous_price"`
		NewPrice      string `json:"new_price"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].PreviousPrice != "45.00" || resp[0].NewPrice != "50.00" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreatePromotion_Success(t *testing.T) {
	serviceID := uuid.New()
	svc := &mockCatalogServicer{
		createPromotionFn: func(ctx context.Context, req service.CreatePromotionRequest) (database.ServicePromotion, error) {
			if req.ServiceID != serviceID || req.DiscountType != "PERCENT" {
				t.Errorf("unexpected request: %+v", req)
			}
			return database.ServicePromotion{
				ID:            uuid.New(),
				ServiceID:     serviceID,
				Name:          req.Name,
				DiscountType:  req.DiscountType,
				DiscountValue: makeTestNumeric(t, "10.00"),
				StartsAt:      req.StartsAt,
				EndsAt:        req.EndsAt,
				IsActive:      true,
			}, nil
		},
	}
	router := newCatalogRouter(svc, newMockCatalogReadStore())

	body, _ := json.Marshal(map[string]string{
		"name":           "Septiembre",
		"discount_type":  "PERCENT",
		"discount_value": "10.00",
		"starts_at":      "2026-09-01T00:00:00Z",
		"ends_at":        "2026-09-30T23:59:59Z",
	})
	req := roleRequest(t, "POST", "/services/"+serviceID.String()+"/promotions", body, enum.UserRoleManager)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestCreatePromotion_BadWindowFormat(t *testing.T) {
	router := newCatalogRouter(&mockCatalogServicer{}, newMockCatalogReadStore())

	body, _ := json.Marshal(map[string]string{
		"name":           "Mala",
		"discount_type":  "PERCENT",
		"discount_value": "10.00",
		"starts_at":      "not-a-date",
		"ends_at":        "2026-09-30T23:59:59Z",
	})
	req := roleRequest(t, "POST", "/services/"+uuid.NewString()+"/promotions", body, enum.UserRoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDeactivatePromotion(t *testing.T) {
	store := newMockCatalogReadStore()
	router := newCatalogRouter(&mockCatalogServicer{}, store)

	promoID := uuid.New()
	req := roleRequest(t, "DELETE", "/services/"+uuid.NewString()+"/promotions/"+promoID.String(), nil, enum.UserRoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if len(store.deactivated) != 1 || store.deactivated[0] != promoID {
		t.Errorf("expected promotion %s deactivated, got %v", promoID, store.deactivated)
	}
}
