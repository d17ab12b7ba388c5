package handler

import (
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/middleware"
)

// actorFromRequest builds the audit actor from the authenticated claims
// and the caller's address.
func actorFromRequest(r *http.Request) audit.Actor {
	actor := audit.Actor{}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		id := claims.UserID
		actor.UserID = &id
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		actor.IP = host
	} else {
		actor.IP = r.RemoteAddr
	}
	return actor
}

// numericToString renders a pgtype.Numeric as its decimal string, or
// "0" when unset.
func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	v, err := n.Value()
	if err != nil {
		return "0"
	}
	s, ok := v.(string)
	if !ok {
		return "0"
	}
	return s
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func uuidPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

// parsePagination reads limit/offset query params with sane defaults.
func parsePagination(r *http.Request) (limit, offset int32) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 && n <= 200 {
			limit = int32(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
