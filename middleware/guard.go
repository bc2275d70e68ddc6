package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/trackforge/authcore"
)

type principalContextKey struct{}

// PrincipalFromContext returns the caller stored by [Guard].
func PrincipalFromContext(ctx context.Context) (*authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*authcore.Principal)
	return p, ok && p != nil
}

// WithPrincipal stores p in ctx the way [Guard] does.
func WithPrincipal(ctx context.Context, p *authcore.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard rejects requests without a valid bearer access token and stores the
// resolved [authcore.Principal] in the request context.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token")
				return
			}

			ctx := authcore.WithClientIP(r.Context(), ClientIP(r))
			principal, err := engine.ValidateAccess(ctx, token)
			if err != nil {
				if errors.Is(err, authcore.ErrInfrastructureUnavailable) {
					WriteError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, "authentication backend unavailable")
					return
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
