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
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/handler"
)

// --- Mock store ---

type mockCustomerStore struct {
	customers map[uuid.UUID]database.Customer
}

func newMockCustomerStore() *mockCustomerStore {
	return &mockCustomerStore{customers: make(map[uuid.UUID]database.Customer)}
}

func (m *mockCustomerStore) CreateCustomer(_ context.Context, arg database.CreateCustomerParams) (database.Customer, error) {
	c := database.Customer{
		ID:        uuid.New(),
		FullName:  arg.FullName,
		Phone:     arg.Phone,
		Email:     arg.Email,
		Notes:     arg.Notes,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.customers[c.ID] = c
	return c, nil
}

func (m *mockCustomerStore) GetCustomer(_ context.Context, id uuid.UUID) (database.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return database.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockCustomerStore) ListCustomers(_ context.Context) ([]database.Customer, error) {
	var result []database.Customer
	for _, c := range m.customers {
		result = append(result, c)
	}
	return result, nil
}

func (m *mockCustomerStore) UpdateCustomer(_ context.Context, arg database.UpdateCustomerParams) (database.Customer, error) {
	c, ok := m.customers[arg.ID]
	if !ok {
		return database.Customer{}, pgx.ErrNoRows
	}
	c.FullName = arg.FullName
	c.Phone = arg.Phone
	c.Email = arg.Email
	c.Notes = arg.Notes
	c.UpdatedAt = time.Now()
	m.customers[c.ID] = c
	return c, nil
}

func (m *mockCustomerStore) DeleteCustomer(_ context.Context, id uuid.UUID) error {
	delete(m.customers, id)
	return nil
}

func newCustomerRouter(store *mockCustomerStore) chi.Router {
	r := chi.NewRouter()
	r.Route("/customers", handler.NewCustomerHandler(store).RegisterRoutes)
	return r
}

// --- Tests ---

func TestCreateCustomer(t *testing.T) {
	store := newMockCustomerStore()
	router := newCustomerRouter(store)

	body, _ := json.Marshal(map[string]string{
		"full_name": "Laura Mendez",
		"phone":     "5512345678",
	})
	req := httptest.NewRequest("POST", "/customers", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		FullName string  `json:"full_name"`
		Phone    *string `json:"phone"`
		Email    *string `json:"email"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FullName != "Laura Mendez" {
		t.Errorf("full_name: got %q", resp.FullName)
	}
	if resp.Phone == nil || *resp.Phone != "5512345678" {
		t.Errorf("phone: got %v", resp.Phone)
	}
	if resp.Email != nil {
		t.Errorf("email should be null, got %v", *resp.Email)
	}
}

func TestCreateCustomer_MissingName(t *testing.T) {
	router := newCustomerRouter(newMockCustomerStore())

	body, _ := json.Marshal(map[string]string{"phone": "5512345678"})
	req := httptest.NewRequest("POST", "/customers", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	router := newCustomerRouter(newMockCustomerStore())

	req := httptest.NewRequest("GET", "/customers/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpdateCustomer(t *testing.T) {
	store := newMockCustomerStore()
	customer, _ := store.CreateCustomer(context.Background(), database.CreateCustomerParams{FullName: "Old Name"})
	router := newCustomerRouter(store)

	body, _ := json.Marshal(map[string]string{"full_name": "New Name"})
	req := httptest.NewRequest("PUT", "/customers/"+customer.ID.String(), bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got := store.customers[customer.ID].FullName; got != "New Name" {
		t.Errorf("full_name after update: got %q", got)
	}
}

func TestDeleteCustomer(t *testing.T) {
	store := newMockCustomerStore()
	customer, _ := store.CreateCustomer(context.Background(), database.CreateCustomerParams{FullName: "Temp"})
	router := newCustomerRouter(store)

	req := httptest.NewRequest("DELETE", "/customers/"+customer.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if _, ok := store.customers[customer.ID]; ok {
		t.Error("customer still present after delete")
	}
}
