package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ctxKey string

const ctxAdminCredentials ctxKey = "VMS_ADMIN_CREDENTIALS"

// AdminCredentials is the verified identity of an admin caller. Plant is nil for
// super admins; a concrete value restricts the caller to that plant (plus any
// configured aliases, resolved by plantscope).
type AdminCredentials struct {
	ID       string
	Username string
	Plant    *string
}

// IsSuperAdmin reports whether the caller is unrestricted.
func (c *AdminCredentials) IsSuperAdmin() bool {
	return c != nil && (c.Plant == nil || strings.TrimSpace(*c.Plant) == "")
}

// AdminFromContext retrieves the credentials stored by the JWT middleware.
func AdminFromContext(ctx context.Context) (*AdminCredentials, bool) {
	v := ctx.Value(ctxAdminCredentials)
	if v == nil {
		return nil, false
	}
	creds, ok := v.(*AdminCredentials)
	return creds, ok
}

// WithAdmin stores credentials on the context; exported for tests and CLI tooling.
func WithAdmin(ctx context.Context, creds *AdminCredentials) context.Context {
	return context.WithValue(ctx, ctxAdminCredentials, creds)
}

// VerifyFunc validates the incoming token and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]interface{}, error)

// ExtractFunc converts a claims map into AdminCredentials.
type ExtractFunc func(claims map[string]interface{}) (*AdminCredentials, error)

// JWT parses the request and sets the context credentials using the provided
// verify/extract functions. Requests without a token pass through untouched;
// route groups that need an identity stack RequireAdmin on top.
func JWT(verify VerifyFunc, extract ExtractFunc) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractBearerToken(r)
			if token == "" || !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description="%s"`, err.Error()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			creds, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithAdmin(r.Context(), creds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests that did not present valid admin credentials.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AdminFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin rejects callers that carry a plant scope. Used for the
// blacklist toggle and soft-delete endpoints.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, ok := AdminFromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !creds.IsSuperAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractBearerToken parses the Authorization header, accepting any casing of the
// Bearer prefix.
func ExtractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}

// DefaultCredentialExtractor converts the login token claims into AdminCredentials.
// The plant claim is trusted verbatim; an absent or empty plant denotes a super admin.
func DefaultCredentialExtractor(claims map[string]interface{}) (*AdminCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	id := stringClaim(claims, "id")
	if id == "" {
		id = stringClaim(claims, "sub")
	}
	if id == "" {
		return nil, errors.New("token missing id claim")
	}

	username := stringClaim(claims, "username")
	if username == "" {
		return nil, errors.New("token missing username claim")
	}

	creds := &AdminCredentials{
		ID:       id,
		Username: username,
	}

	if plant := stringClaim(claims, "plant"); plant != "" && plant != "null" {
		creds.Plant = &plant
	}

	return creds, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if s, valid := v.(string); valid {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
