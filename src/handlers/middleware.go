package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/username/yieldmap/backend/src/logger"
)

// RequestIDMiddleware tags every request with an id and writes an access
// log line when the handler returns.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)

		logger.L.Info("Request handled",
			"requestID", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remoteAddr", r.RemoteAddr,
			"duration", time.Since(start))
	})
}
