package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/councilflow/config"
	"github.com/BaSui01/councilflow/internal/metrics"
	"github.com/BaSui01/councilflow/types"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := SecurityHeaders()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// SecurityHeaders should be present
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	// RequestID should also be present
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID_GeneratesAndInjects(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := types.RequestID(r.Context())
		require.True(t, ok)
		seen = id
	})

	handler := RequestID()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestID_PreservesClientID(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := types.RequestID(r.Context())
		assert.Equal(t, "req-client-42", id)
	})

	handler := RequestID()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-client-42")
	handler.ServeHTTP(w, r)

	assert.Equal(t, "req-client-42", w.Header().Get("X-Request-ID"))
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	handler := Recovery(zaptest.NewLogger(t))(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/api/v1/council/ask", "/api/v1/council/ask"},
		{"/api/v1/council/ask/stream", "/api/v1/council/ask/stream"},
		{"/api/v1/conversations", "/api/v1/conversations"},
		{"/api/v1/conversations/7c9e6679-7425-40de-944b-e07fc1f90ae7", "/api/v1/conversations/:id"},
		{"/api/v1/conversations/deadbeef01", "/api/v1/conversations/:id"},
		{"/api/v1/conversations/12345", "/api/v1/conversations/:id"},
		{"/api/v1/conversations/drafts", "/api/v1/conversations/drafts"},
		{"/api/v1/auth/token", "/api/v1/auth/token"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path), "path %s", tt.path)
	}
}

func TestMetricsMiddleware_PreservesResponse(t *testing.T) {
	collector := metrics.NewCollector("councilflow_mw_test", zaptest.NewLogger(t))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	})

	handler := MetricsMiddleware(collector)(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "created", w.Body.String())
}

// =============================================================================
// Auth
// =============================================================================

func authedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}
}

func TestAuth_DisabledPassesThrough(t *testing.T) {
	cfg := config.AuthConfig{Enabled: false}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(authedHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_SkipPath(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKey: "sekret"}
	handler := Auth(cfg, []string{"/health"}, zaptest.NewLogger(t))(authedHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_MissingCredentials(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKey: "sekret"}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(authedHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing credentials")
}

func TestAuth_APIKeyHeader(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKey: "sekret"}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(authedHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	r.Header.Set("X-API-Key", "sekret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_APIKeyQueryParam(t *testing.T) {
	// WebSocket handshakes cannot carry custom headers from a browser.
	cfg := config.AuthConfig{Enabled: true, APIKey: "sekret"}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(authedHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/council/ws?api_key=sekret", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_WrongKey(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKey: "sekret"}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(authedHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	r.Header.Set("X-API-Key", "guess")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_BearerTokenRoundTrip(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret", TokenTTL: time.Hour}

	token, expiresAt, err := IssueToken(cfg, "tester")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	handler := Auth(cfg, nil, zaptest.NewLogger(t))(authedHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	// The same token works in the api_key query parameter, the form browser
	// WebSocket clients use.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/council/ws?api_key="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_GarbageToken(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, JWTSecret: "test-secret"}
	handler := Auth(cfg, nil, zaptest.NewLogger(t))(authedHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or expired")
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, _, err := IssueToken(config.AuthConfig{}, "tester")
	assert.Error(t, err)
}

// =============================================================================
// RateLimiter
// =============================================================================

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 1, zaptest.NewLogger(t))(authedHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/council/ask", nil)
	r.RemoteAddr = "10.0.0.1:50000"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiter_SeparateVisitors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 1, zaptest.NewLogger(t))(authedHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:50000"
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:50000"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	assert.Equal(t, http.StatusOK, w.Code)

	// A different IP has its own bucket.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// CORS
// =============================================================================

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(authedHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_UnlistedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(authedHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_EmptyOriginsRejectsPreflight(t *testing.T) {
	handler := CORS(nil)(authedHandler())

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightNoContent(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(authedHandler())

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
