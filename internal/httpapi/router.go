// Package httpapi exposes the authcore Engine over JSON/HTTP under
// /api/auth. Error responses use the envelope written by
// [middleware.WriteError].
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/trackforge/authcore"
	"github.com/trackforge/authcore/middleware"
)

// Options tune the router. Zero values fall back to the Engine's limits as
// reported in X-RateLimit-Limit headers.
type Options struct {
	Logger *slog.Logger
	// LoginLimit and APILimit are echoed in rate limit headers.
	LoginLimit int
	APILimit   int
	// TrustProxy enables chi's RealIP so X-Forwarded-For decides the client
	// address.
	TrustProxy bool
	// Production adds Strict-Transport-Security.
	Production bool
}

// Handler serves the auth endpoints.
type Handler struct {
	engine     *authcore.Engine
	log        *slog.Logger
	loginLimit int
}

// NewHandler returns the endpoint handlers without any middleware.
func NewHandler(engine *authcore.Engine, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, log: log, loginLimit: opts.LoginLimit}
}

// Routes mounts the auth endpoints. Endpoints acting on the current user sit
// behind [middleware.Guard].
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(h.engine))
		r.Post("/logout", h.logout)
		r.Post("/logout-all", h.logoutAll)
		r.Post("/change-password", h.changePassword)
		r.Get("/me", h.me)
		r.Get("/sessions/count", h.sessionCount)
	})

	return r
}

// NewRouter returns the complete API: request ids, logging, panic recovery,
// security headers and the per-IP API rate limit in front of /api/auth.
func NewRouter(engine *authcore.Engine, opts Options) chi.Router {
	h := NewHandler(engine, opts)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(requestLogger(h.log))
	r.Use(recoverer)
	r.Use(securityHeaders(opts.Production))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(engine, opts.APILimit))
		r.Mount("/auth", h.Routes())
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, codeNotFound, "not found")
	})

	return r
}
