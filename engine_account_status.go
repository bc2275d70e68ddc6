package authcore

import (
	"context"
	"strconv"
)

// SetActive activates or deactivates userID. Activation also clears any
// lockout; deactivation ends every session of the user.
func (e *Engine) SetActive(ctx context.Context, userID string, active bool) error {
	if err := e.ready(); err != nil {
		return err
	}

	if _, err := e.users.FindByID(ctx, userID); err != nil {
		return e.repoError(ctx, "users.find_by_id", err)
	}

	if err := e.users.SetActive(ctx, userID, active); err != nil {
		return e.repoError(ctx, "users.set_active", err)
	}

	if active {
		if err := e.users.ClearLockout(ctx, userID); err != nil {
			return e.repoError(ctx, "users.clear_lockout", err)
		}
		e.metricInc(MetricAccountActivated)
	} else {
		if _, err := e.LogoutAll(ctx, userID); err != nil {
			return err
		}
		e.metricInc(MetricAccountDeactivated)
	}

	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, "", nil, func() map[string]string {
		return map[string]string{"active": strconv.FormatBool(active)}
	})
	return nil
}

// Unlock clears the failed-login counter and lock of userID without touching
// its active flag.
func (e *Engine) Unlock(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.users.ClearLockout(ctx, userID); err != nil {
		return e.repoError(ctx, "users.clear_lockout", err)
	}

	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, "", nil, func() map[string]string {
		return map[string]string{"unlocked": "true"}
	})
	return nil
}
