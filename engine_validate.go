package authcore

import (
	"context"
	"errors"

	"github.com/trackforge/authcore/permission"
)

// ValidateAccess resolves an access token to the caller behind it. The token
// must decode, must not be blacklisted, and its user must still exist and be
// active.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.DecodeAccess(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	revoked, err := e.blacklist.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, e.backendError(ctx, "blacklist.is_revoked", err)
	}
	if revoked {
		e.metricInc(MetricRevokedTokenRejected)
		return nil, ErrTokenRevoked
	}

	user, err := e.users.FindByID(ctx, claims.UserID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, e.repoError(ctx, "users.find_by_id", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrUserUnavailable
	}

	return &Principal{User: user, Claims: claims}, nil
}

// Can reports whether user's role grants every one of perms. A nil or
// inactive user can do nothing.
func Can(user *User, perms ...permission.Permission) bool {
	if user == nil || !user.IsActive {
		return false
	}
	return permission.RoleHasAll(user.Role, perms...)
}

// CanAny reports whether user's role grants at least one of perms.
func CanAny(user *User, perms ...permission.Permission) bool {
	if user == nil || !user.IsActive {
		return false
	}
	return permission.RoleHasAny(user.Role, perms...)
}
