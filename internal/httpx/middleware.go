// Package httpx provides the small HTTP middleware chain the
// metrics server wraps its handler in, trimmed from the teacher's
// internal/api/http middleware chain down to the one concern that
// still applies to a single-endpoint metrics server: request
// identification.
package httpx

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDMiddleware assigns a request id (from the X-Request-ID
// header if the caller supplied one, otherwise a generated uuid) and
// echoes it back on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}
