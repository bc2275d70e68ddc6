package middleware

import (
	"net/http"

	"github.com/trackforge/authcore"
)

// RequirePermission lets the request through only when the principal's role
// grants every one of perms. It must run after [Guard].
func RequirePermission(perms ...authcore.Permission) func(http.Handler) http.Handler {
	return requireWith(func(u *authcore.User) bool {
		return authcore.Can(u, perms...)
	})
}

// RequireAnyPermission lets the request through when the role grants at
// least one of perms.
func RequireAnyPermission(perms ...authcore.Permission) func(http.Handler) http.Handler {
	return requireWith(func(u *authcore.User) bool {
		return authcore.CanAny(u, perms...)
	})
}

func requireWith(allowed func(*authcore.User) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
				return
			}
			if !allowed(principal.User) {
				WriteError(w, http.StatusForbidden, CodeForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
