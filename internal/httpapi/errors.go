package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/trackforge/authcore"
	"github.com/trackforge/authcore/internal/pkg/logctx"
	"github.com/trackforge/authcore/middleware"
)

const (
	codeValidation    = "VALIDATION_ERROR"
	codeConflict      = "CONFLICT_ERROR"
	codeAccountLocked = "ACCOUNT_LOCKED"
	codeInactive      = "ACCOUNT_INACTIVE"
	codeNotFound      = "NOT_FOUND"
	codeInternal      = "INTERNAL_ERROR"
)

const maxJSONBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst. Unknown fields are
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, codeValidation, "Request validation failed")
		return false
	}
	return true
}

// writeEngineError maps an Engine error onto a status and error code.
// Backend and unexpected errors are reported to Sentry.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *authcore.AccountLockedError

	switch {
	case errors.As(err, &locked):
		middleware.WriteErrorDetails(w, http.StatusLocked, codeAccountLocked,
			"Account is temporarily locked due to too many failed login attempts",
			map[string]any{"unlock_at": locked.UnlockAt.UTC().Format(time.RFC3339)})
	case errors.Is(err, authcore.ErrAccountLocked):
		middleware.WriteError(w, http.StatusLocked, codeAccountLocked, "Account is temporarily locked")
	case errors.Is(err, authcore.ErrInvalidCredentials):
		unauthorized(w, "Invalid username or password")
	case errors.Is(err, authcore.ErrTokenRevoked):
		unauthorized(w, "Token has been revoked")
	case errors.Is(err, authcore.ErrSessionExpired):
		unauthorized(w, "Session has expired")
	case errors.Is(err, authcore.ErrTokenInvalid):
		unauthorized(w, "Invalid or expired token")
	case errors.Is(err, authcore.ErrUserUnavailable):
		unauthorized(w, "User not found or inactive")
	case errors.Is(err, authcore.ErrAccountInactive):
		middleware.WriteError(w, http.StatusForbidden, codeInactive, "Account is deactivated")
	case errors.Is(err, authcore.ErrDuplicateUsername):
		middleware.WriteError(w, http.StatusConflict, codeConflict, "Username already exists")
	case errors.Is(err, authcore.ErrDuplicateEmail):
		middleware.WriteError(w, http.StatusConflict, codeConflict, "Email already exists")
	case errors.Is(err, authcore.ErrPasswordPolicy),
		errors.Is(err, authcore.ErrInvalidRegistration),
		errors.Is(err, authcore.ErrInvalidRole):
		middleware.WriteError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
	case errors.Is(err, authcore.ErrInfrastructureUnavailable):
		report(r, err)
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.CodeServiceUnavailable,
			"Authentication backend unavailable")
	default:
		report(r, err)
		middleware.WriteError(w, http.StatusInternalServerError, codeInternal, "An unexpected error occurred")
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	middleware.WriteError(w, http.StatusUnauthorized, middleware.CodeUnauthorized, message)
}

func report(r *http.Request, err error) {
	logctx.From(r.Context()).Error("request_failed", slog.Any("error", err))

	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
