package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			duration := time.Since(start).Seconds()

			// Normalize path to avoid high cardinality from IDs
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// normalizePath converts dynamic path segments to placeholders to avoid
// high cardinality metrics. For example:
//
//	/api/v1/builds/3f2c...-...-... -> /api/v1/builds/{id}
//	/api/v1/verify/x2zbvsk9...     -> /api/v1/verify/{id}
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	normalized := []string{"/api/v1"}
	for _, part := range parts {
		if part == "" {
			continue
		}
		if isLikelyID(part) {
			normalized = append(normalized, "{id}")
		} else {
			normalized = append(normalized, part)
		}
	}
	return strings.Join(normalized, "/")
}

// isLikelyID returns true if segment looks like an identifier
func isLikelyID(segment string) bool {
	// UUIDs with dashes
	if strings.Count(segment, "-") >= 4 {
		return true
	}
	// Pure numbers (could be chain IDs)
	if isNumeric(segment) {
		return true
	}
	// Addresses, hashes and explorer GUIDs
	return len(segment) >= 32 && isAlphanumeric(segment)
}

// isAlphanumeric returns true if string contains only ASCII letters, digits and an optional 0x prefix
func isAlphanumeric(s string) bool {
	for _, c := range strings.TrimPrefix(s, "0x") {
		isDigit := c >= '0' && c <= '9'
		isLower := c >= 'a' && c <= 'z'
		isUpper := c >= 'A' && c <= 'Z'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return len(s) > 0
}

// isNumeric returns true if string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
