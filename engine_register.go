package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Register creates an active account. It does not open a session; callers
// follow up with [Engine.Authenticate].
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	role := in.Role
	if role == "" {
		role = DefaultRole
	}

	if err := e.validateRegistration(username, email, in.Password, role); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	exists, err := e.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, e.repoError(ctx, "users.exists_by_username", err)
	}
	if exists {
		return nil, e.rejectDuplicate(ctx, ErrDuplicateUsername)
	}

	exists, err = e.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, e.repoError(ctx, "users.exists_by_email", err)
	}
	if exists {
		return nil, e.rejectDuplicate(ctx, ErrDuplicateEmail)
	}

	hash, err := e.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail) {
			return nil, e.rejectDuplicate(ctx, err)
		}
		return nil, e.repoError(ctx, "users.create", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"role": string(user.Role)}
	})

	return user, nil
}

func (e *Engine) validateRegistration(username, email, plain string, role Role) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := ValidatePassword(plain); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

func (e *Engine) rejectDuplicate(ctx context.Context, err error) error {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
	return err
}
