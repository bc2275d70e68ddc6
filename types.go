package authcore

import (
	"context"
	"time"

	"github.com/trackforge/authcore/jwt"
	"github.com/trackforge/authcore/permission"
)

// Role is one of the closed set of account roles.
type Role = permission.Role

const (
	RoleDeveloper = permission.RoleDeveloper
	RoleManager   = permission.RoleManager
	RoleAdmin     = permission.RoleAdmin

	// DefaultRole is assigned by Register when no role is given.
	DefaultRole = RoleDeveloper
)

// User is the account record as stored by the [UserRepository]. PasswordHash
// never leaves the core; use [User.Public] for anything that is serialised.
type User struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string `json:"-"`
	Role                Role
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether LockedUntil is still in the future at now.
func (u *User) IsLocked(now time.Time) bool {
	return u != nil && u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// PublicUser is the externally visible projection of [User].
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Public drops credential and lockout fields.
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// UserRepository is the user record store the Engine reads and updates.
// Lookups of unknown users return [ErrUserNotFound]; Create maps unique
// violations to [ErrDuplicateUsername] or [ErrDuplicateEmail].
type UserRepository interface {
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// RecordLoginFailure atomically adds one to the failure count. When
	// threshold is positive and the new count reaches it, the lock deadline
	// becomes lockUntil; otherwise the stored deadline is left as it is.
	// It returns the new count and the stored deadline.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	// RecordLoginSuccess zeroes the failure count, clears the lock and sets
	// the last login time.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	// ClearLockout zeroes the failure count and clears the lock.
	ClearLockout(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// RegisterInput is the input for [Engine.Register]. Role defaults to
// [DefaultRole] when empty.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// AuthResult is returned by [Engine.Authenticate].
type AuthResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
	SessionID    string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
}

// TokenPair is returned by [Engine.Refresh].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    time.Duration
}

// Principal is the caller behind a validated access token.
type Principal struct {
	User   *User
	Claims *jwt.AccessClaims
}

// Permission is a single capability checked by [Can] and [CanAny].
type Permission = permission.Permission
