package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Middleware rejects requests over the per-user budget with 429. Requests
// whose key func returns "" pass through; authentication decides those.
// When the limiter store fails the request is refused with 503.
func Middleware(l *Limiter, key func(ctx context.Context) string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := key(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := l.Allow(r.Context(), userID)
			if err != nil {
				logger.Error("rate limiter unavailable", zap.String("user_id", userID), zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error": "rate limiter unavailable",
				})
				return
			}
			if !allowed {
				retryAfter := strconv.Itoa(int(Window.Seconds()))
				w.Header().Set("Retry-After", retryAfter)
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":       "rate limit exceeded",
					"retry_after": retryAfter + "s",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
