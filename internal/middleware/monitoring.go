package middleware

import (
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lavanderia-pos/api/internal/audit"
	"github.com/lavanderia-pos/api/internal/enum"
)

// AlertOnServerError raises a deduplicated operational alert for every
// response with a 5xx status. Alerting never interferes with the
// response itself.
func AlertOnServerError(alerter *audit.Alerter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusInternalServerError {
				severity := enum.AlertSeverityCritical
				if ww.Status() == http.StatusServiceUnavailable {
					severity = enum.AlertSeverityWarning
				}
				alerter.RaiseBestEffort(r.Context(), "http_5xx", "api",
					severity,
					fmt.Sprintf("%s %s returned %d", r.Method, r.URL.Path, ww.Status()),
					map[string]any{
						"method": r.Method,
						"path":   r.URL.Path,
						"status": ww.Status(),
					})
			}
		})
	}
}
