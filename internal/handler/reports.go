package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	DailyRevenue(ctx context.Context, arg database.DailyRevenueParams) ([]database.DailyRevenueRow, error)
}

// ReportsHandler handles revenue report endpoints.
type ReportsHandler struct {
	store ReportStore
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportStore) *ReportsHandler {
	return &ReportsHandler{store: store, now: time.Now}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/revenue", h.Revenue)
}

type revenueResponse struct {
	From     time.Time         `json:"from"`
	To       time.Time         `json:"to"`
	ByMethod map[string]string `json:"by_method"`
	Total    string            `json:"total"`
}

// Revenue sums applied payments by method over a date range.
// Defaults to today when from/to are omitted.
func (h *ReportsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24 * time.Hour)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
			return
		}
		to = parsed
	}

	rows, err := h.store.DailyRevenue(r.Context(), database.DailyRevenueParams{From: from, To: to})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byMethod := make(map[string]string, len(rows))
	total := decimal.Zero
	for _, row := range rows {
		amount, err := decimal.NewFromString(numericToString(row.Total))
		if err != nil {
			continue
		}
		byMethod[row.Method] = amount.StringFixed(2)
		total = total.Add(amount)
	}

	writeJSON(w, http.StatusOK, revenueResponse{
		From:     from,
		To:       to,
		ByMethod: byMethod,
		Total:    total.StringFixed(2),
	})
}
