package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lavanderia-pos/api/internal/database"
)

// --- Mock AlertStore ---

type mockAlertStore struct {
	getFn    func(ctx context.Context, fingerprint string) (database.OperationalAlert, error)
	createFn func(ctx context.Context, arg database.CreateOperationalAlertParams) (database.OperationalAlert, error)
	bumpFn   func(ctx context.Context, arg database.BumpOperationalAlertParams) (database.OperationalAlert, error)
}

func (m *mockAlertStore) GetUnresolvedAlertByFingerprint(ctx context.Context, fingerprint string) (database.OperationalAlert, error) {
	return m.getFn(ctx, fingerprint)
}
func (m *mockAlertStore) CreateOperationalAlert(ctx context.Context, arg database.CreateOperationalAlertParams) (database.OperationalAlert, error) {
	return m.createFn(ctx, arg)
}
func (m *mockAlertStore) BumpOperationalAlert(ctx context.Context, arg database.BumpOperationalAlertParams) (database.OperationalAlert, error) {
	return m.bumpFn(ctx, arg)
}

// inMemoryAlertStore keeps alerts by fingerprint like the real table.
type inMemoryAlertStore struct {
	alerts map[string]database.OperationalAlert
}

func newInMemoryAlertStore() *inMemoryAlertStore {
	return &inMemoryAlertStore{alerts: make(map[string]database.OperationalAlert)}
}

func (m *inMemoryAlertStore) GetUnresolvedAlertByFingerprint(_ context.Context, fingerprint string) (database.OperationalAlert, error) {
	a, ok := m.alerts[fingerprint]
	if !ok {
		return database.OperationalAlert{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *inMemoryAlertStore) CreateOperationalAlert(_ context.Context, arg database.CreateOperationalAlertParams) (database.OperationalAlert, error) {
	a := database.OperationalAlert{
		ID:              uuid.New(),
		EventType:       arg.EventType,
		Source:          arg.Source,
		Severity:        arg.Severity,
		Message:         arg.Message,
		Metadata:        arg.Metadata,
		Fingerprint:     arg.Fingerprint,
		OccurrenceCount: 1,
		FirstSeenAt:     arg.SeenAt,
		LastSeenAt:      arg.SeenAt,
	}
	m.alerts[arg.Fingerprint] = a
	return a, nil
}

func (m *inMemoryAlertStore) BumpOperationalAlert(_ context.Context, arg database.BumpOperationalAlertParams) (database.OperationalAlert, error) {
	for fp, a := range m.alerts {
		if a.ID == arg.ID {
			a.OccurrenceCount++
			a.LastSeenAt = arg.LastSeenAt
			a.Metadata = arg.Metadata
			m.alerts[fp] = a
			return a, nil
		}
	}
	return database.OperationalAlert{}, pgx.ErrNoRows
}

// --- Tests ---

func TestRaiseDeduplicatesByFingerprint(t *testing.T) {
	store := newInMemoryAlertStore()
	alerter := NewAlerter(store)

	first, err := alerter.Raise(context.Background(), "cash_session.high_difference", "cash_session:1", "CRITICAL", "high drawer variance", map[string]any{"difference": "250.00"})
	if err != nil {
		t.Fatalf("first raise: %v", err)
	}
	if first.OccurrenceCount != 1 {
		t.Fatalf("first occurrence count: got %d, want 1", first.OccurrenceCount)
	}

	second, err := alerter.Raise(context.Background(), "cash_session.high_difference", "cash_session:1", "CRITICAL", "high drawer variance", nil)
	if err != nil {
		t.Fatalf("second raise: %v", err)
	}
	if second.OccurrenceCount != 2 {
		t.Fatalf("second occurrence count: got %d, want 2", second.OccurrenceCount)
	}
	if len(store.alerts) != 1 {
		t.Fatalf("alert rows: got %d, want 1", len(store.alerts))
	}
}

func TestRaiseMergesMetadataShallow(t *testing.T) {
	store := newInMemoryAlertStore()
	alerter := NewAlerter(store)

	_, err := alerter.Raise(context.Background(), "http.server_error", "/orders", "CRITICAL", "500 detected", map[string]any{"method": "POST", "status": 500})
	if err != nil {
		t.Fatalf("first raise: %v", err)
	}
	merged, err := alerter.Raise(context.Background(), "http.server_error", "/orders", "CRITICAL", "500 detected", map[string]any{"status": 503, "retries": 2})
	if err != nil {
		t.Fatalf("second raise: %v", err)
	}

	var md map[string]any
	if err := json.Unmarshal(merged.Metadata, &md); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if md["method"] != "POST" {
		t.Errorf("prior key dropped: method = %v", md["method"])
	}
	if md["status"] != float64(503) {
		t.Errorf("new key should overwrite: status = %v", md["status"])
	}
	if md["retries"] != float64(2) {
		t.Errorf("new key missing: retries = %v", md["retries"])
	}
}

func TestRaiseDifferentMessagesAreSeparateAlerts(t *testing.T) {
	store := newInMemoryAlertStore()
	alerter := NewAlerter(store)

	_, _ = alerter.Raise(context.Background(), "http.server_error", "/orders", "CRITICAL", "500 detected", nil)
	_, _ = alerter.Raise(context.Background(), "http.server_error", "/payments", "CRITICAL", "500 detected", nil)

	if len(store.alerts) != 2 {
		t.Fatalf("alert rows: got %d, want 2 (different sources fingerprint apart)", len(store.alerts))
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("db.unavailable", "healthcheck", "ping failed")
	b := Fingerprint("db.unavailable", "healthcheck", "ping failed")
	if a != b {
		t.Fatalf("fingerprint not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length: got %d, want 64 hex chars", len(a))
	}
}

func TestRaiseBestEffortSwallowsErrors(t *testing.T) {
	store := &mockAlertStore{
		getFn: func(ctx context.Context, fingerprint string) (database.OperationalAlert, error) {
			return database.OperationalAlert{}, errors.New("connection refused")
		},
	}
	alerter := NewAlerter(store)

	// Must not panic or propagate.
	alerter.RaiseBestEffort(context.Background(), "db.unavailable", "healthcheck", "CRITICAL", "ping failed", nil)
}

func TestRaiseLostInsertRaceMergesIntoWinner(t *testing.T) {
	// A concurrent Raise inserts the row between our lookup and our
	// insert: the unique-index violation must turn into a bump of the
	// winner's row, not a dropped occurrence.
	existing := database.OperationalAlert{
		ID:              uuid.New(),
		EventType:       "db.unavailable",
		OccurrenceCount: 1,
	}
	lookups := 0
	bumped := false
	store := &mockAlertStore{
		getFn: func(ctx context.Context, fingerprint string) (database.OperationalAlert, error) {
			lookups++
			if lookups == 1 {
				return database.OperationalAlert{}, pgx.ErrNoRows
			}
			return existing, nil
		},
		createFn: func(ctx context.Context, arg database.CreateOperationalAlertParams) (database.OperationalAlert, error) {
			return database.OperationalAlert{}, &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "uniq_unresolved_alert_fingerprint",
			}
		},
		bumpFn: func(ctx context.Context, arg database.BumpOperationalAlertParams) (database.OperationalAlert, error) {
			if arg.ID != existing.ID {
				t.Errorf("bump id: got %v, want %v", arg.ID, existing.ID)
			}
			bumped = true
			out := existing
			out.OccurrenceCount = 2
			return out, nil
		},
	}
	alerter := NewAlerter(store)

	alert, err := alerter.Raise(context.Background(), "db.unavailable", "healthcheck", "CRITICAL", "ping failed", nil)
	if err != nil {
		t.Fatalf("raise after lost insert race: %v", err)
	}
	if !bumped {
		t.Fatal("expected the existing alert to be bumped")
	}
	if alert.OccurrenceCount != 2 {
		t.Fatalf("occurrence count: got %d, want 2", alert.OccurrenceCount)
	}
}

func TestRaiseLookupErrorPropagates(t *testing.T) {
	store := &mockAlertStore{
		getFn: func(ctx context.Context, fingerprint string) (database.OperationalAlert, error) {
			return database.OperationalAlert{}, errors.New("connection refused")
		},
	}
	alerter := NewAlerter(store)
	alerter.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	if _, err := alerter.Raise(context.Background(), "x", "y", "INFO", "z", nil); err == nil {
		t.Fatal("expected error from store lookup failure")
	}
}
