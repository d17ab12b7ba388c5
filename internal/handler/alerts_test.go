package handler_test

import (
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
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/handler"
)

type mockAlertStore struct {
	alerts   map[uuid.UUID]database.OperationalAlert
	lastList database.ListUnresolvedAlertsParams
	logs     []database.AuditLog
}

func newMockAlertStore() *mockAlertStore {
	return &mockAlertStore{alerts: make(map[uuid.UUID]database.OperationalAlert)}
}

func (m *mockAlertStore) ListUnresolvedAlerts(_ context.Context, arg database.ListUnresolvedAlertsParams) ([]database.OperationalAlert, error) {
	m.lastList = arg
	var result []database.OperationalAlert
	for _, a := range m.alerts {
		if a.ResolvedAt.Valid {
			continue
		}
		if arg.Severity != "" && a.Severity != arg.Severity {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *mockAlertStore) ResolveOperationalAlert(_ context.Context, arg database.ResolveOperationalAlertParams) (database.OperationalAlert, error) {
	a, ok := m.alerts[arg.ID]
	if !ok {
		return database.OperationalAlert{}, pgx.ErrNoRows
	}
	a.ResolvedAt = pgtype.Timestamptz{Time: arg.ResolvedAt, Valid: true}
	m.alerts[arg.ID] = a
	return a, nil
}

func (m *mockAlertStore) ListAuditLogs(_ context.Context, _ database.ListAuditLogsParams) ([]database.AuditLog, error) {
	return m.logs, nil
}

func newAlertRouter(store *mockAlertStore) chi.Router {
	r := chi.NewRouter()
	r.Route("/alerts", handler.NewAlertHandler(store).RegisterRoutes)
	return r
}

func sampleAlert(severity string) database.OperationalAlert {
	now := time.Now()
	return database.OperationalAlert{
		ID:              uuid.New(),
		EventType:       "cash_session.high_difference",
		Source:          "cash_session",
		Severity:        severity,
		Message:         "cash difference above threshold",
		Metadata:        []byte(`{"difference":"-250.00"}`),
		OccurrenceCount: 1,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
}

func TestListAlerts_FiltersBySeverity(t *testing.T) {
	store := newMockAlertStore()
	critical := sampleAlert("CRITICAL")
	warning := sampleAlert("WARNING")
	store.alerts[critical.ID] = critical
	store.alerts[warning.ID] = warning
	router := newAlertRouter(store)

	req := httptest.NewRequest("GET", "/alerts?severity=CRITICAL", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.lastList.Severity != "CRITICAL" {
		t.Errorf("severity filter not passed: %+v", store.lastList)
	}

	var resp []struct {
		Severity string `json:"severity"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Severity != "CRITICAL" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestListAlerts_InvalidSince(t *testing.T) {
	router := newAlertRouter(newMockAlertStore())

	req := httptest.NewRequest("GET", "/alerts?since=yesterday", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestResolveAlert_SetsResolvedAt(t *testing.T) {
	store := newMockAlertStore()
	alert := sampleAlert("WARNING")
	store.alerts[alert.ID] = alert
	router := newAlertRouter(store)

	req := httptest.NewRequest("POST", "/alerts/"+alert.ID.String()+"/resolve", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp struct {
		ResolvedAt *time.Time `json:"resolved_at"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ResolvedAt == nil {
		t.Error("resolved_at should be set")
	}
	if !store.alerts[alert.ID].ResolvedAt.Valid {
		t.Error("alert not marked resolved in store")
	}
}

func TestResolveAlert_NotFound(t *testing.T) {
	router := newAlertRouter(newMockAlertStore())

	req := httptest.NewRequest("POST", "/alerts/"+uuid.NewString()+"/resolve", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAuditLog_ReturnsEntries(t *testing.T) {
	store := newMockAlertStore()
	actorID := uuid.New()
	store.logs = []database.AuditLog{{
		ID:          uuid.New(),
		ActorID:     pgtype.UUID{Bytes: actorID, Valid: true},
		Action:      "payment.voided",
		TargetModel: "payment",
		TargetPk:    uuid.NewString(),
		Metadata:    []byte(`{"amount":"50.00"}`),
		CreatedAt:   time.Now(),
	}}
	router := newAlertRouter(store)

	req := httptest.NewRequest("GET", "/alerts/audit-log", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp []struct {
		ActorID *string `json:"actor_id"`
		Action  string  `json:"action"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Action != "payment.voided" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp[0].ActorID == nil || *resp[0].ActorID != actorID.String() {
		t.Errorf("actor_id: got %v", resp[0].ActorID)
	}
}
