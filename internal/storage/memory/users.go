// Package memory is an in-process [authcore.UserRepository] for tests, the
// load generator and the minimal example. Data lives only as long as the
// process.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/trackforge/authcore"
)

// UserRepository keeps users in maps guarded by one RWMutex. Every read
// returns a copy.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[string]*authcore.User
	byUsername map[string]string
	byEmail    map[string]string
}

// NewUserRepository returns an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[string]*authcore.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

var _ authcore.UserRepository = (*UserRepository)(nil)

// FindByUsernameOrEmail matches the username exactly or the email without
// regard to case.
func (r *UserRepository) FindByUsernameOrEmail(_ context.Context, identifier string) (*authcore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[identifier]
	if !ok {
		id, ok = r.byEmail[strings.ToLower(identifier)]
	}
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return copyUser(r.byID[id]), nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*authcore.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUsername[username]
	return ok, nil
}

func (r *UserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[strings.ToLower(email)]
	return ok, nil
}

// Create stores a copy of user. Username and email are unique.
func (r *UserRepository) Create(_ context.Context, user *authcore.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return authcore.ErrDuplicateUsername
	}
	email := strings.ToLower(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return authcore.ErrDuplicateEmail
	}

	r.byID[user.ID] = copyUser(user)
	r.byUsername[user.Username] = user.ID
	r.byEmail[email] = user.ID
	return nil
}

func (r *UserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.update(id, func(u *authcore.User) {
		u.PasswordHash = hash
	})
}

// RecordLoginFailure increments the failure count under the write lock and
// sets the lock deadline once the count reaches a positive threshold.
func (r *UserRepository) RecordLoginFailure(_ context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	var (
		attempts    int
		lockedUntil *time.Time
	)
	err := r.update(id, func(u *authcore.User) {
		u.FailedLoginAttempts++
		if threshold > 0 && u.FailedLoginAttempts >= threshold {
			until := lockUntil
			u.LockedUntil = &until
		}
		attempts = u.FailedLoginAttempts
		if u.LockedUntil != nil {
			until := *u.LockedUntil
			lockedUntil = &until
		}
	})
	if err != nil {
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

func (r *UserRepository) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *authcore.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		last := at
		u.LastLogin = &last
	})
}

func (r *UserRepository) ClearLockout(_ context.Context, id string) error {
	return r.update(id, func(u *authcore.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (r *UserRepository) SetActive(_ context.Context, id string, active bool) error {
	return r.update(id, func(u *authcore.User) {
		u.IsActive = active
	})
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *UserRepository) update(id string, fn func(*authcore.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func copyUser(u *authcore.User) *authcore.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		out.LockedUntil = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		out.LastLogin = &t
	}
	return &out
}
