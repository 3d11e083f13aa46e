// Package logging provides structured HTTP request logging middleware.
package logging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/contraforge/internal/middleware/realip"
)

// probePaths are logged at debug level; orchestrators hit them constantly
var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware logs one structured line per request with the chi request id,
// method, path, status, response size, duration and client IP.
// 5xx responses log at error level and 4xx at warn.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				logger.Log(r.Context(), level(r.URL.Path, status), "request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"client_ip", realip.GetClientIP(r),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func level(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case probePaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
