package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/trackforge/authcore/internal/pkg/logctx"
	"github.com/trackforge/authcore/middleware"
)

// requestLogger puts a request-scoped logger into the context and logs one
// line per request.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := base.With(
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logctx.Into(r.Context(), log)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("http_request",
				slog.Int("status", status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("ip", middleware.ClientIP(r)),
			)
		})
	}
}

// recoverer turns a panic into a 500 and reports it to Sentry.
// http.ErrAbortHandler is re-raised so net/http can abort the response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub()
			}
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetExtra("panic", fmt.Sprint(rec))
				scope.SetExtra("stack", string(debug.Stack()))
				scope.SetTag("path", r.URL.Path)
				hub.CaptureMessage("panic in request")
			})

			logctx.From(r.Context()).Error("panic_recovered", slog.Any("panic", rec))

			middleware.WriteError(w, http.StatusInternalServerError, codeInternal, "An unexpected error occurred")
		}()

		next.ServeHTTP(w, r)
	})
}

var baseSecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Cache-Control":           "no-store, no-cache, must-revalidate, private",
	"Pragma":                  "no-cache",
	"Permissions-Policy":      "geolocation=(), microphone=(), camera=()",
	"Content-Security-Policy": "default-src 'self'; frame-ancestors 'none'; base-uri 'self'",
}

func securityHeaders(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range baseSecurityHeaders {
				h.Set(k, v)
			}
			if production {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}
			next.ServeHTTP(w, r)
		})
	}
}
