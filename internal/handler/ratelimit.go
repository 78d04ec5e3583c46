package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"asha-portal/internal/model"
	"asha-portal/internal/util"
)

// RateLimit applies a fixed-window per-IP limit keyed by request path. A
// limiter failure lets the request through; blunting brute force is not
// worth an outage of the login path.
func RateLimit(cache model.RateLimitCache, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiterKey(r)
			count, err := cache.IncrementCounter(key, window)
			if err != nil {
				util.Warn("Rate limiter unavailable, allowing request",
					zap.String("key", key),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if count > limit {
				util.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.Int("count", count),
					zap.Int("limit", limit))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(Response{
					Success: false,
					Message: "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func limiterKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host + ":" + r.URL.Path
}
