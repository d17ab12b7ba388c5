package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/middleware"
)

type recordingAlertStore struct {
	created []database.CreateOperationalAlertParams
}

func (s *recordingAlertStore) GetUnresolvedAlertByFingerprint(ctx context.Context, fingerprint string) (database.OperationalAlert, error) {
	return database.OperationalAlert{}, pgx.ErrNoRows
}

func (s *recordingAlertStore) CreateOperationalAlert(ctx context.Context, arg database.CreateOperationalAlertParams) (database.OperationalAlert, error) {
	s.created = append(s.created, arg)
	return database.OperationalAlert{EventType: arg.EventType}, nil
}

func (s *recordingAlertStore) BumpOperationalAlert(ctx context.Context, arg database.BumpOperationalAlertParams) (database.OperationalAlert, error) {
	return database.OperationalAlert{}, nil
}

func TestAlertOnServerError_RaisesFor500(t *testing.T) {
	store := &recordingAlertStore{}
	alerter := audit.NewAlerter(store)

	handler := middleware.AlertOnServerError(alerter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	req := httptest.NewRequest("GET", "/orders", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if len(store.created) != 1 {
		t.Fatalf("alerts created: got %d, want 1", len(store.created))
	}
	if store.created[0].EventType != "http_5xx" {
		t.Errorf("event type: got %q, want http_5xx", store.created[0].EventType)
	}
	if store.created[0].Severity != "CRITICAL" {
		t.Errorf("severity: got %q, want CRITICAL", store.created[0].Severity)
	}
}

func TestAlertOnServerError_IgnoresSuccessAndClientErrors(t *testing.T) {
	store := &recordingAlertStore{}
	alerter := audit.NewAlerter(store)

	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusBadRequest, http.StatusNotFound} {
		handler := middleware.AlertOnServerError(alerter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		req := httptest.NewRequest("GET", "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	if len(store.created) != 0 {
		t.Fatalf("alerts created: got %d, want 0", len(store.created))
	}
}
