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
	"github.com/lavanderia-pos/api/internal/database"
)

// AlertStore defines the database methods needed by alert handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AlertStore interface {
	ListUnresolvedAlerts(ctx context.Context, arg database.ListUnresolvedAlertsParams) ([]database.OperationalAlert, error)
	ResolveOperationalAlert(ctx context.Context, arg database.ResolveOperationalAlertParams) (database.OperationalAlert, error)
	ListAuditLogs(ctx context.Context, arg database.ListAuditLogsParams) ([]database.AuditLog, error)
}

// AlertHandler handles operational alert and audit log endpoints.
type AlertHandler struct {
	store AlertStore
	now   func() time.Time
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(store AlertStore) *AlertHandler {
	return &AlertHandler{store: store, now: time.Now}
}

// RegisterRoutes registers alert endpoints on the given Chi router.
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/resolve", h.Resolve)
	r.Get("/audit-log", h.AuditLog)
}

// --- Response types ---

type alertResponse struct {
	ID              uuid.UUID       `json:"id"`
	EventType       string          `json:"event_type"`
	Source          string          `json:"source"`
	Severity        string          `json:"severity"`
	Message         string          `json:"message"`
	Metadata        json.RawMessage `json:"metadata"`
	OccurrenceCount int32           `json:"occurrence_count"`
	FirstSeenAt     time.Time       `json:"first_seen_at"`
	LastSeenAt      time.Time       `json:"last_seen_at"`
	ResolvedAt      *time.Time      `json:"resolved_at"`
}

type auditLogResponse struct {
	ID          uuid.UUID       `json:"id"`
	ActorID     *string         `json:"actor_id"`
	Action      string          `json:"action"`
	TargetModel string          `json:"target_model"`
	TargetPK    string          `json:"target_pk"`
	IPAddress   *string         `json:"ip_address"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
}

// --- Handlers ---

// List returns unresolved alerts, optionally filtered by severity and age.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	severity := r.URL.Query().Get("severity")

	since := time.Time{}
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since"})
			return
		}
		since = parsed
	}

	alerts, err := h.store.ListUnresolvedAlerts(r.Context(), database.ListUnresolvedAlertsParams{
		Severity: severity,
		Since:    since,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Resolve marks an alert handled.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid alert id"})
		return
	}

	alert, err := h.store.ResolveOperationalAlert(r.Context(), database.ResolveOperationalAlertParams{
		ID:         alertID,
		ResolvedAt: h.now(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toAlertResponse(alert))
}

// AuditLog returns audit entries, newest first.
func (h *AlertHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	logs, err := h.store.ListAuditLogs(r.Context(), database.ListAuditLogsParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]auditLogResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, auditLogResponse{
			ID:          entry.ID,
			ActorID:     uuidPtr(entry.ActorID),
			Action:      entry.Action,
			TargetModel: entry.TargetModel,
			TargetPK:    entry.TargetPk,
			IPAddress:   textPtr(entry.IpAddress),
			Metadata:    json.RawMessage(entry.Metadata),
			CreatedAt:   entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func toAlertResponse(a database.OperationalAlert) alertResponse {
	resp := alertResponse{
		ID:              a.ID,
		EventType:       a.EventType,
		Source:          a.Source,
		Severity:        a.Severity,
		Message:         a.Message,
		Metadata:        json.RawMessage(a.Metadata),
		OccurrenceCount: a.OccurrenceCount,
		FirstSeenAt:     a.FirstSeenAt,
		LastSeenAt:      a.LastSeenAt,
	}
	if a.ResolvedAt.Valid {
		t := a.ResolvedAt.Time
		resp.ResolvedAt = &t
	}
	return resp
}
