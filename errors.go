package authcore

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is matched by [*AccountLockedError].
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned when a deactivated account presents a correct password.
	ErrAccountInactive = errors.New("account inactive")
	// ErrDuplicateUsername is returned by Register when the username is taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is returned by Register when the email is taken.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrInvalidRegistration is returned by Register for missing fields.
	ErrInvalidRegistration = errors.New("invalid registration request")
	// ErrPasswordPolicy is returned when a new password is too short, too long
	// or missing a required character class.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidRole is returned for a role outside developer/manager/admin.
	ErrInvalidRole = errors.New("invalid role")
	// ErrTokenInvalid covers malformed, badly signed, expired and wrong-type tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned when the token's jti is blacklisted.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionExpired is returned when the session behind a refresh token is gone.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserUnavailable is returned when a token's user was deleted or deactivated.
	ErrUserUnavailable = errors.New("user not found or inactive")
	// ErrInfrastructureUnavailable is returned when the session or blacklist
	// store cannot answer. Revocation and session checks fail closed.
	ErrInfrastructureUnavailable = errors.New("auth backend unavailable")
	// ErrTokenIssuance is returned when a new token pair cannot be signed.
	ErrTokenIssuance = errors.New("token issuance failed")
	// ErrUserNotFound is returned by a [UserRepository] for an unknown id or identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by methods on an Engine missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AccountLockedError reports a temporary lockout and when it ends. It matches
// [ErrAccountLocked] under errors.Is.
type AccountLockedError struct {
	UnlockAt time.Time
}

func (e *AccountLockedError) Error() string {
	return "account locked until " + e.UnlockAt.UTC().Format(time.RFC3339)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
