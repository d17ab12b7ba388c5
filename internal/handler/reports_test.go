package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/handler"
)

type mockReportStore struct {
	rows     []database.DailyRevenueRow
	lastArgs database.DailyRevenueParams
}

func (m *mockReportStore) DailyRevenue(_ context.Context, arg database.DailyRevenueParams) ([]database.DailyRevenueRow, error) {
	m.lastArgs = arg
	return m.rows, nil
}

func newReportRouter(store *mockReportStore) chi.Router {
	r := chi.NewRouter()
	r.Route("/reports", handler.NewReportsHandler(store).RegisterRoutes)
	return r
}

func TestRevenue_SumsByMethod(t *testing.T) {
	store := &mockReportStore{
		rows: []database.DailyRevenueRow{
			{Method: "CASH", Total: makeTestNumeric(t, "700.00")},
			{Method: "CARD", Total: makeTestNumeric(t, "250.50")},
		},
	}
	router := newReportRouter(store)

	req := httptest.NewRequest("GET", "/reports/revenue", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		ByMethod map[string]string `json:"by_method"`
		Total    string            `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ByMethod["CASH"] != "700.00" || resp.ByMethod["CARD"] != "250.50" {
		t.Errorf("by_method: %+v", resp.ByMethod)
	}
	if resp.Total != "950.50" {
		t.Errorf("total: got %q, want 950.50", resp.Total)
	}
}

func TestRevenue_ExplicitRange(t *testing.T) {
	store := &mockReportStore{}
	router := newReportRouter(store)

	req := httptest.NewRequest("GET", "/reports/revenue?from=2026-08-01T00:00:00Z&to=2026-09-01T00:00:00Z", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	wantFrom := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !store.lastArgs.From.Equal(wantFrom) || !store.lastArgs.To.Equal(wantTo) {
		t.Errorf("range: got %v..%v", store.lastArgs.From, store.lastArgs.To)
	}
}

func TestRevenue_InvalidRange(t *testing.T) {
	router := newReportRouter(&mockReportStore{})

	req := httptest.NewRequest("GET", "/reports/revenue?from=ayer", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
