package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-oidc-bff/cookie"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, "/sessionstatus", "")

	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	require.True(t, strings.HasPrefix(rec.Header().Get("Strict-Transport-Security"), "max-age="))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCors(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		origin       string
		expectStatus int
		expectOrigin string
	}{
		{name: "preflight from client app", method: http.MethodOptions, origin: testClientAppURL, expectStatus: http.StatusNoContent, expectOrigin: testClientAppURL},
		{name: "preflight from other origin", method: http.MethodOptions, origin: "https://evil.example.com", expectStatus: http.StatusNoContent, expectOrigin: ""},
		{name: "request from client app", method: http.MethodGet, origin: testClientAppURL, expectStatus: http.StatusOK, expectOrigin: testClientAppURL},
		{name: "request from other origin", method: http.MethodGet, origin: "https://evil.example.com", expectStatus: http.StatusOK, expectOrigin: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			req := httptest.NewRequest(tt.method, "/sessionstatus", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			f.server.ServeHTTP(rec, req)

			require.Equal(t, tt.expectStatus, rec.Code)
			require.Equal(t, tt.expectOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, "Origin", rec.Header().Get("Vary"))
			if tt.expectOrigin != "" {
				require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	f.server.RegisterRouteFunc("GET /panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := f.get(t, "/panic", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeJSON(t, rec.Body.Bytes())["status"])

	f.repo.GetErr = errStoreDown
	rec = f.get(t, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "unavailable", decodeJSON(t, rec.Body.Bytes())["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	sid := cookie.NewSessionID()
	f.repo.Seed(sid, map[string]string{"state": "abc123"})
	f.get(t, "/callback?state=wrong", sid)

	rec := f.get(t, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `bff_error_policy_total{handler="callback",kind="ValidationError"} 1`)
}

type testError string

func (e testError) Error() string { return string(e) }

const errStoreDown = testError("store down")
