package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contraforge/internal/middleware/realip"
)

// testHandler returns a handler that writes a response with the given status and body
func testHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func serve(t *testing.T, h http.Handler, req *http.Request, logBuf *bytes.Buffer) map[string]any {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	return entry
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestMiddleware_LogsRequests(t *testing.T) {
	var logBuf bytes.Buffer
	handler := Middleware(newLogger(&logBuf))(testHandler(http.StatusOK, "hello"))

	req := httptest.NewRequest("POST", "/api/v1/compile", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	entry := serve(t, handler, req, &logBuf)

	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/api/v1/compile", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.Equal(t, "192.168.1.100", entry["client_ip"])

	duration, ok := entry["duration"].(string)
	assert.True(t, ok, "duration should be a string")
	assert.NotEmpty(t, duration)
}

func TestMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{"server error", "/api/v1/compile", http.StatusInternalServerError, "ERROR"},
		{"client error", "/api/v1/compile", http.StatusBadRequest, "WARN"},
		{"rate limited", "/api/v1/test", http.StatusTooManyRequests, "WARN"},
		{"probe", "/healthz", http.StatusOK, "DEBUG"},
		{"failing probe", "/readyz", http.StatusServiceUnavailable, "ERROR"},
		{"normal", "/api/v1/builds", http.StatusOK, "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			handler := Middleware(newLogger(&logBuf))(testHandler(tt.status, ""))

			entry := serve(t, handler, httptest.NewRequest("GET", tt.path, nil), &logBuf)
			assert.Equal(t, tt.want, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestMiddleware_ProbesHiddenAtInfo(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	handler := Middleware(logger)(testHandler(http.StatusOK, "ok"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	assert.Empty(t, logBuf.String())
}

func TestMiddleware_DefaultStatus200(t *testing.T) {
	var logBuf bytes.Buffer
	handler := Middleware(newLogger(&logBuf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no explicit status"))
	}))

	entry := serve(t, handler, httptest.NewRequest("GET", "/", nil), &logBuf)
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}

func TestMiddleware_EmptyResponseIs200(t *testing.T) {
	var logBuf bytes.Buffer
	handler := Middleware(newLogger(&logBuf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	entry := serve(t, handler, httptest.NewRequest("GET", "/", nil), &logBuf)
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(0), entry["bytes"])
}

func TestMiddleware_IncludesRequestID(t *testing.T) {
	var logBuf bytes.Buffer
	handler := middleware.RequestID(Middleware(newLogger(&logBuf))(testHandler(http.StatusOK, "")))

	entry := serve(t, handler, httptest.NewRequest("GET", "/", nil), &logBuf)
	assert.NotEmpty(t, entry["request_id"])
}

func TestMiddleware_HandlesContextWithRequestID(t *testing.T) {
	var logBuf bytes.Buffer
	handler := Middleware(newLogger(&logBuf))(testHandler(http.StatusOK, ""))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "test-request-id-123"))

	entry := serve(t, handler, req, &logBuf)
	assert.Equal(t, "test-request-id-123", entry["request_id"])
}

func TestMiddleware_UsesForwardedIPBehindTrustedProxy(t *testing.T) {
	var logBuf bytes.Buffer
	handler := realip.Middleware(realip.Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}})(Middleware(newLogger(&logBuf))(testHandler(http.StatusOK, "")))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")

	entry := serve(t, handler, req, &logBuf)
	assert.Equal(t, "203.0.113.50", entry["client_ip"])
}
