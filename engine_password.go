package authcore

import (
	"context"
	"errors"
	"strconv"
)

// ChangePassword replaces the password of userID after checking the current
// one, then ends every session of the user. The password write and the
// session purge are not atomic; a failure between them leaves the old
// sessions alive until their refresh tokens expire.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserUnavailable
		}
		return e.repoError(ctx, "users.find_by_id", err)
	}
	if user == nil || !user.IsActive {
		return ErrUserUnavailable
	}

	ok, err := e.verifyPassword(ctx, currentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, user.ID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	hash, err := e.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return e.repoError(ctx, "users.update_password_hash", err)
	}

	count, err := e.LogoutAll(ctx, user.ID)
	if err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"sessions_invalidated": strconv.Itoa(count)}
	})

	return nil
}

// ConfirmPassword re-checks the password of an already authenticated user,
// for operations that ask for it again such as logging out everywhere.
func (e *Engine) ConfirmPassword(ctx context.Context, userID, plain string) error {
	if err := e.ready(); err != nil {
		return err
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserUnavailable
		}
		return e.repoError(ctx, "users.find_by_id", err)
	}
	if user == nil || !user.IsActive {
		return ErrUserUnavailable
	}

	ok, err := e.verifyPassword(ctx, plain, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}
