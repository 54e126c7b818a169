package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header string
		token  string
		found  bool
	}{
		{name: "standard", header: "Bearer abc.def.ghi", token: "abc.def.ghi", found: true},
		{name: "lowercase prefix", header: "bearer abc", token: "abc", found: true},
		{name: "missing header", header: "", found: false},
		{name: "wrong scheme", header: "Basic dXNlcg==", found: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			token, found := ExtractBearerToken(r)
			require.Equal(t, tc.found, found)
			require.Equal(t, tc.token, token)
		})
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("test-secret")
	plant := "Wire Plant"
	now := time.Now().UTC()

	token, err := SignAdminToken(secret, AdminCredentials{ID: "42", Username: "gatekeeper", Plant: &plant}, time.Hour, now)
	require.NoError(t, err)

	claims, err := HS256Verifier(secret)(nil, token)
	require.NoError(t, err)

	creds, err := DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "42", creds.ID)
	require.Equal(t, "gatekeeper", creds.Username)
	require.NotNil(t, creds.Plant)
	require.Equal(t, "Wire Plant", *creds.Plant)
	require.False(t, creds.IsSuperAdmin())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := SignAdminToken([]byte("right"), AdminCredentials{ID: "1", Username: "admin"}, time.Hour, time.Now())
	require.NoError(t, err)

	_, err = HS256Verifier([]byte("wrong"))(nil, token)
	require.Error(t, err)
}

func TestSuperAdminHasNoPlantClaim(t *testing.T) {
	t.Parallel()

	token, err := SignAdminToken([]byte("s"), AdminCredentials{ID: "1", Username: "admin"}, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := HS256Verifier([]byte("s"))(nil, token)
	require.NoError(t, err)
	require.NotContains(t, claims, "plant")

	creds, err := DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Nil(t, creds.Plant)
	require.True(t, creds.IsSuperAdmin())
}

func TestJWTMiddlewareSetsCredentials(t *testing.T) {
	t.Parallel()

	secret := []byte("mw-secret")
	token, err := SignAdminToken(secret, AdminCredentials{ID: "7", Username: "ops"}, time.Hour, time.Now())
	require.NoError(t, err)

	var got *AdminCredentials
	handler := JWT(HS256Verifier(secret), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	require.Equal(t, "ops", got.Username)
}

func TestJWTMiddlewareRejectsBadToken(t *testing.T) {
	t.Parallel()

	handler := JWT(HS256Verifier([]byte("x")), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	plant := "Forging Division"

	t.Run("scoped admin forbidden", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/", nil)
		r = r.WithContext(WithAdmin(r.Context(), &AdminCredentials{ID: "1", Username: "a", Plant: &plant}))
		w := httptest.NewRecorder()
		RequireSuperAdmin(next).ServeHTTP(w, r)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("super admin allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/", nil)
		r = r.WithContext(WithAdmin(r.Context(), &AdminCredentials{ID: "1", Username: "a"}))
		w := httptest.NewRecorder()
		RequireSuperAdmin(next).ServeHTTP(w, r)
		require.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/", nil)
		w := httptest.NewRecorder()
		RequireSuperAdmin(next).ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
