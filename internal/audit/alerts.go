package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lavanderia-pos/api/internal/database"
)

// AlertStore defines the DB methods needed to persist alerts.
type AlertStore interface {
	GetUnresolvedAlertByFingerprint(ctx context.Context, fingerprint string) (database.OperationalAlert, error)
	CreateOperationalAlert(ctx context.Context, arg database.CreateOperationalAlertParams) (database.OperationalAlert, error)
	BumpOperationalAlert(ctx context.Context, arg database.BumpOperationalAlertParams) (database.OperationalAlert, error)
}

// Alerter raises deduplicated operational alerts.
type Alerter struct {
	store AlertStore
	now   func() time.Time
}

func NewAlerter(store AlertStore) *Alerter {
	return &Alerter{store: store, now: time.Now}
}

// Fingerprint is the stable dedup key for an alert kind.
func Fingerprint(eventType, source, message string) string {
	sum := sha256.Sum256([]byte(eventType + "|" + source + "|" + message))
	return hex.EncodeToString(sum[:])
}

const maxRaiseRetries = 3

// Raise records an alert, merging into an existing unresolved alert
// with the same fingerprint (occurrence_count++, last_seen_at bumped,
// metadata shallow-merged with new keys winning).
func (a *Alerter) Raise(ctx context.Context, eventType, source, severity, message string, metadata map[string]any) (database.OperationalAlert, error) {
	fingerprint := Fingerprint(eventType, source, message)

	// Retry loop: a concurrent Raise can win the insert race on the
	// unresolved-fingerprint unique index between our lookup and our
	// insert; retrying finds that row and merges into it instead.
	var lastErr error
	for attempt := 0; attempt < maxRaiseRetries; attempt++ {
		alert, err := a.raiseOnce(ctx, fingerprint, eventType, source, severity, message, metadata)
		if err == nil {
			return alert, nil
		}
		if isFingerprintConflict(err) {
			lastErr = err
			continue
		}
		return database.OperationalAlert{}, err
	}
	return database.OperationalAlert{}, lastErr
}

// isFingerprintConflict checks if the error is a unique constraint
// violation on the unresolved-alert fingerprint (pgconn code 23505).
func isFingerprintConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "uniq_unresolved_alert_fingerprint"
	}
	return false
}

func (a *Alerter) raiseOnce(ctx context.Context, fingerprint, eventType, source, severity, message string, metadata map[string]any) (database.OperationalAlert, error) {
	now := a.now()

	existing, err := a.store.GetUnresolvedAlertByFingerprint(ctx, fingerprint)
	if err == nil {
		merged := map[string]any{}
		if len(existing.Metadata) > 0 {
			if err := json.Unmarshal(existing.Metadata, &merged); err != nil {
				merged = map[string]any{}
			}
		}
		for k, v := range metadata {
			merged[k] = normalizeValue(v)
		}
		payload, err := json.Marshal(merged)
		if err != nil {
			return database.OperationalAlert{}, fmt.Errorf("marshal alert metadata: %w", err)
		}
		return a.store.BumpOperationalAlert(ctx, database.BumpOperationalAlertParams{
			ID:         existing.ID,
			LastSeenAt: now,
			Metadata:   payload,
		})
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.OperationalAlert{}, fmt.Errorf("lookup alert by fingerprint: %w", err)
	}

	data := make(map[string]any, len(metadata))
	for k, v := range metadata {
		data[k] = normalizeValue(v)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return database.OperationalAlert{}, fmt.Errorf("marshal alert metadata: %w", err)
	}
	return a.store.CreateOperationalAlert(ctx, database.CreateOperationalAlertParams{
		EventType:   eventType,
		Source:      source,
		Severity:    severity,
		Message:     message,
		Metadata:    payload,
		Fingerprint: fingerprint,
		SeenAt:      now,
	})
}

// RaiseBestEffort swallows persistence failures: alerting must never
// abort the business operation that triggered it.
func (a *Alerter) RaiseBestEffort(ctx context.Context, eventType, source, severity, message string, metadata map[string]any) {
	if _, err := a.Raise(ctx, eventType, source, severity, message, metadata); err != nil {
		log.Printf("ERROR: raise operational alert %s: %v", eventType, err)
	}
}
