package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/trackforge/authcore"
)

// RateLimit charges every request to the client IP's general API window and
// answers 429 with Retry-After once it is spent. Redis outages let requests
// through.
func RateLimit(engine *authcore.Engine, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			d := engine.AllowRequest(r.Context(), ClientIP(r))
			if !d.Allowed {
				WriteRateLimited(w, d, limit, "Too many requests. Please slow down.")
				return
			}
			if !d.FailedOpen && limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimited writes the 429 response for a denied decision.
func WriteRateLimited(w http.ResponseWriter, d authcore.RateDecision, limit int, message string) {
	retry := int(d.RetryAfter / time.Second)
	if retry < 1 {
		retry = 1
	}
	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(retry))
	if limit > 0 {
		h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	}
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.RetryAfter).Unix(), 10))
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// ClientIP returns the host part of RemoteAddr. Put chi's RealIP in front of
// the router when running behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
