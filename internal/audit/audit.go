// Package audit records immutable before/after snapshots of sensitive
// changes and raises deduplicated operational alerts. Actor and IP are
// explicit arguments supplied by the HTTP layer; there is no ambient
// request state.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// AuditStore defines the DB methods needed to write audit rows.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// Actor identifies who performed a change. Zero value means a
// system-initiated change with no request context.
type Actor struct {
	UserID *uuid.UUID
	IP     string
}

// Change is a before/after pair for one audited field.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Event is one auditable action against one record.
type Event struct {
	Action      string
	TargetModel string
	TargetPK    string
	Changes     map[string]Change
	Metadata    map[string]any
}

// Recorder writes audit rows through a store.
type Recorder struct {
	store AuditStore
}

func NewRecorder(store AuditStore) *Recorder {
	return &Recorder{store: store}
}

// Log writes one immutable audit row. Values inside Changes and
// Metadata are normalized to JSON primitives, RFC3339 timestamps or
// identifier strings before serialization.
func (r *Recorder) Log(ctx context.Context, actor Actor, ev Event) error {
	data := make(map[string]any, len(ev.Metadata)+1)
	for k, v := range ev.Metadata {
		data[k] = normalizeValue(v)
	}
	if len(ev.Changes) > 0 {
		changes := make(map[string]map[string]any, len(ev.Changes))
		for field, ch := range ev.Changes {
			changes[field] = map[string]any{
				"before": normalizeValue(ch.Before),
				"after":  normalizeValue(ch.After),
			}
		}
		data["changes"] = changes
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	actorID := pgtype.UUID{}
	if actor.UserID != nil {
		actorID = pgtype.UUID{Bytes: *actor.UserID, Valid: true}
	}
	ip := pgtype.Text{}
	if actor.IP != "" {
		ip = pgtype.Text{String: actor.IP, Valid: true}
	}

	_, err = r.store.CreateAuditLog(ctx, database.CreateAuditLogParams{
		ActorID:     actorID,
		Action:      ev.Action,
		TargetModel: ev.TargetModel,
		TargetPk:    ev.TargetPK,
		IpAddress:   ip,
		Metadata:    payload,
	})
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// normalizeValue flattens domain values into JSON-friendly primitives.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return val.StringFixed(2)
	case *decimal.Decimal:
		if val == nil {
			return nil
		}
		return val.StringFixed(2)
	case time.Time:
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(time.RFC3339)
	case uuid.UUID:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case string, bool, int, int32, int64, float64:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for idx, item := range val {
			out[idx] = normalizeValue(item)
		}
		return out
	default:
		return fmt.Sprintf("%v", val)
	}
}
