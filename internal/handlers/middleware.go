package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"cropyield-platform/pkg/logging"
)

// RequestIDMiddleware attaches a request ID to every request context and
// echoes it back in the X-Request-ID response header. Inbound IDs from
// trusted proxies are reused.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
