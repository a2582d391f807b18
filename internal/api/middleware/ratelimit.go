package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tulibraries/combine/internal/api/response"
	"github.com/tulibraries/combine/internal/cache"
)

const (
	rateLimitWindow  = time.Minute
	defaultPerWindow = 60
)

// RateLimit throttles callers per API-key prefix using a Redis counter
// that expires with the window.
type RateLimit struct {
	cache     cache.Cache
	perWindow int
}

func NewRateLimit(c cache.Cache, perWindow int) *RateLimit {
	if perWindow <= 0 {
		perWindow = defaultPerWindow
	}
	return &RateLimit{cache: c, perWindow: perWindow}
}

// Limit enforces the per-key budget. Unauthenticated requests and Redis
// failures pass through; losing the counter must not take the API down.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := callerPrefix(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(prefix), rateLimitWindow)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		rl.writeHeaders(w, count)
		if count > int64(rl.perWindow) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow/time.Second)))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimit) writeHeaders(w http.ResponseWriter, count int64) {
	remaining := rl.perWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.perWindow))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateLimitWindow).Unix(), 10))
}
