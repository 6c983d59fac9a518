package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/parley-ai/parley/internal/ratelimit"
)

// identity derives the rate-limit key for a request. RealIP middleware has
// already resolved forwarded addresses into RemoteAddr.
func identity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimited guards a route with one token-bucket class. A refused request
// gets a 429 with remaining and reset metadata rather than an opaque error.
func rateLimited(limiter *ratelimit.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := limiter.Check(identity(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))

		if !res.Allowed {
			writeErrorWithDetails(w, http.StatusTooManyRequests, ErrCodeRateLimited,
				"rate limit exceeded", map[string]any{
					"remaining": res.Remaining,
					"resetAt":   res.ResetAt.UnixMilli(),
				})
			return
		}

		next(w, r)
	}
}

// streamLimited bounds concurrent long-lived streams per identity.
func streamLimited(streams *ratelimit.StreamLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		release, ok := streams.Acquire(identity(r))
		if !ok {
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited,
				fmt.Sprintf("too many concurrent streams (max %d)", streams.Max()))
			return
		}
		defer release()

		next(w, r)
	}
}
