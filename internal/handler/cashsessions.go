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
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/database"
	"github.com/lavanderia-pos/api/internal/middleware"
	"github.com/lavanderia-pos/api/internal/service"
)

// CashServicer defines the service methods needed by cash session handlers.
// Satisfied by *service.CashSessionService; narrow interface for testability.
type CashServicer interface {
	Open(ctx context.Context, req service.OpenSessionRequest, actor audit.Actor) (database.CashSession, error)
	Summary(ctx context.Context, sessionID uuid.UUID) (*service.SessionSummary, error)
	Close(ctx context.Context, req service.CloseSessionRequest, actor audit.Actor) (*service.SessionSummary, error)
	AddMovement(ctx context.Context, req service.MovementRequest) (database.CashMovement, error)
}

// CashReadStore defines the database methods needed by cash read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CashReadStore interface {
	ListCashSessions(ctx context.Context, arg database.ListCashSessionsParams) ([]database.CashSession, error)
	ListCashMovements(ctx context.Context, cashSessionID uuid.UUID) ([]database.CashMovement, error)
	GetOpenCashSessionByUser(ctx context.Context, userID uuid.UUID) (database.CashSession, error)
}

// CashSessionHandler handles cash session endpoints.
type CashSessionHandler struct {
	svc   CashServicer
	store CashReadStore
}

// NewCashSessionHandler creates a new CashSessionHandler.
func NewCashSessionHandler(svc CashServicer, store CashReadStore) *CashSessionHandler {
	return &CashSessionHandler{svc: svc, store: store}
}

// RegisterRoutes registers cash session endpoints on the given Chi router.
func (h *CashSessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/current", h.Current)
	r.Get("/{id}", h.Summary)
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/movements", h.AddMovement)
	r.Get("/{id}/movements", h.ListMovements)
}

// --- Request / Response types ---

type openSessionRequest struct {
	Shift         string `json:"shift"`
	OpeningAmount string `json:"opening_amount"`
	Notes         string `json:"notes"`
}

type closeSessionRequest struct {
	ClosingAmount string `json:"closing_amount"`
	Notes         string `json:"notes"`
}

type cashMovementRequest struct {
	MovementType string `json:"movement_type"`
	Amount       string `json:"amount"`
	Concept      string `json:"concept"`
	Notes        string `json:"notes"`
}

type cashSessionResponse struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Shift         string     `json:"shift"`
	OpenedAt      time.Time  `json:"opened_at"`
	OpeningAmount string     `json:"opening_amount"`
	ClosedAt      *time.Time `json:"closed_at"`
	ClosingAmount *string    `json:"closing_amount"`
	Notes         *string    `json:"notes"`
}

type sessionSummaryResponse struct {
	Session            cashSessionResponse `json:"session"`
	PaymentsByMethod   map[string]string   `json:"payments_by_method"`
	PaymentsTotal      string              `json:"payments_total"`
	CashPayments       string              `json:"cash_payments"`
	MovementIncome     string              `json:"movement_income"`
	MovementExpense    string              `json:"movement_expense"`
	MovementAdjustment string              `json:"movement_adjustment"`
	GeneratedTotal     string              `json:"generated_total"`
	NetGain            string              `json:"net_gain"`
	ExpectedCash       string              `json:"expected_cash"`
	ClosingAmount      *string             `json:"closing_amount"`
	Difference         *string             `json:"difference"`
}

type cashMovementResponse struct {
	ID            uuid.UUID `json:"id"`
	CashSessionID uuid.UUID `json:"cash_session_id"`
	MovementType  string    `json:"movement_type"`
	Amount        string    `json:"amount"`
	Concept       string    `json:"concept"`
	Notes         *string   `json:"notes"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// --- Handlers ---

// Open starts a cash session for the authenticated user.
func (h *CashSessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	session, err := h.svc.Open(r.Context(), service.OpenSessionRequest{
		UserID:        claims.UserID,
		Shift:         req.Shift,
		OpeningAmount: req.OpeningAmount,
		Notes:         req.Notes,
	}, actorFromRequest(r))
	if err != nil {
		h.writeCashError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCashSessionResponse(session))
}

// List returns past and present sessions, newest first.
func (h *CashSessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	sessions, err := h.store.ListCashSessions(r.Context(), database.ListCashSessionsParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cashSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, toCashSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Current returns the authenticated user's open session, if any.
func (h *CashSessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	session, err := h.store.GetOpenCashSessionByUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open session"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCashSessionResponse(session))
}

// Summary returns the reconciliation view of one session.
func (h *CashSessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	summary, err := h.svc.Summary(r.Context(), sessionID)
	if err != nil {
		h.writeCashError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// Close reconciles and closes a session.
func (h *CashSessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	summary, err := h.svc.Close(r.Context(), service.CloseSessionRequest{
		SessionID:     sessionID,
		ClosingAmount: req.ClosingAmount,
		Notes:         req.Notes,
	}, actorFromRequest(r))
	if err != nil {
		h.writeCashError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// AddMovement records a manual income, expense or adjustment.
func (h *CashSessionHandler) AddMovement(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	var req cashMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.MovementRequest{
		SessionID:    sessionID,
		MovementType: req.MovementType,
		Amount:       req.Amount,
		Concept:      req.Concept,
		Notes:        req.Notes,
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		svcReq.CreatedBy = claims.UserID
	}

	movement, err := h.svc.AddMovement(r.Context(), svcReq)
	if err != nil {
		h.writeCashError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCashMovementResponse(movement))
}

// ListMovements returns the manual movements of one session.
func (h *CashSessionHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	movements, err := h.store.ListCashMovements(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cashMovementResponse, 0, len(movements))
	for _, m := range movements {
		resp = append(resp, toCashMovementResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *CashSessionHandler) writeCashError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSessionAlreadyOpen),
		errors.Is(err, service.ErrSessionClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidOpeningAmount),
		errors.Is(err, service.ErrInvalidClosingAmount),
		errors.Is(err, service.ErrInvalidMovementType),
		errors.Is(err, service.ErrInvalidMovementAmount),
		errors.Is(err, service.ErrEmptyConcept):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toCashSessionResponse(s database.CashSession) cashSessionResponse {
	resp := cashSessionResponse{
		ID:            s.ID,
		UserID:        s.UserID,
		Shift:         s.Shift,
		OpenedAt:      s.OpenedAt,
		OpeningAmount: numericToString(s.OpeningAmount),
		Notes:         textPtr(s.Notes),
	}
	if s.ClosedAt.Valid {
		t := s.ClosedAt.Time
		resp.ClosedAt = &t
	}
	if s.ClosingAmount.Valid {
		v := numericToString(s.ClosingAmount)
		resp.ClosingAmount = &v
	}
	return resp
}

func toSummaryResponse(summary *service.SessionSummary) sessionSummaryResponse {
	byMethod := make(map[string]string, len(summary.PaymentsByMethod))
	for method, amount := range summary.PaymentsByMethod {
		byMethod[method] = amount.StringFixed(2)
	}
	resp := sessionSummaryResponse{
		Session:            toCashSessionResponse(summary.Session),
		PaymentsByMethod:   byMethod,
		PaymentsTotal:      summary.PaymentsTotal.StringFixed(2),
		CashPayments:       summary.CashPayments.StringFixed(2),
		MovementIncome:     summary.MovementIncome.StringFixed(2),
		MovementExpense:    summary.MovementExpense.StringFixed(2),
		MovementAdjustment: summary.MovementAdjustment.StringFixed(2),
		GeneratedTotal:     summary.GeneratedTotal.StringFixed(2),
		NetGain:            summary.NetGain.StringFixed(2),
		ExpectedCash:       summary.ExpectedCash.StringFixed(2),
	}
	if summary.Session.ClosedAt.Valid {
		closing := summary.ClosingAmount.StringFixed(2)
		difference := summary.Difference.StringFixed(2)
		resp.ClosingAmount = &closing
		resp.Difference = &difference
	}
	return resp
}

func toCashMovementResponse(m database.CashMovement) cashMovementResponse {
	return cashMovementResponse{
		ID:            m.ID,
		CashSessionID: m.CashSessionID,
		MovementType:  m.MovementType,
		Amount:        numericToString(m.Amount),
		Concept:       m.Concept,
		Notes:         textPtr(m.Notes),
		OccurredAt:    m.OccurredAt,
	}
}
