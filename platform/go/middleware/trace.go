package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/steelworks-digital/vms-server/platform/go/auth"
	"github.com/steelworks-digital/vms-server/platform/go/requesttrace"
)

// RequestTrace derives an audit record from the authenticated admin (when
// present) and the chi request ID, and stores it on the context for the
// handlers to log against.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())

		audit := requesttrace.Anonymous(requestID)
		if creds, ok := auth.AdminFromContext(r.Context()); ok && creds != nil {
			if fromCreds, err := requesttrace.FromCredentials(creds, requestID); err == nil {
				audit = fromCreds
			}
		}

		next.ServeHTTP(w, r.WithContext(requesttrace.IntoContext(r.Context(), audit)))
	})
}
