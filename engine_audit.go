package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess          = "register_success"
	auditEventRegisterFailure          = "register_failure"
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginRateLimited         = "login_rate_limited"
	auditEventAccountLocked            = "account_locked"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventRefreshReplay            = "refresh_replay_rejected"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeInvalidOld = "password_change_invalid_old"
	auditEventAccountStatusChange      = "account_status_change"
	auditEventRateLimitTriggered       = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label written into [AuditEvent].Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrUserUnavailable    AuditErrorCode = "user_unavailable"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

var errRateLimited = errors.New("rate limited")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, bucket string) {
	eventType := auditEventRateLimitTriggered
	if scope == "login" {
		eventType = auditEventLoginRateLimited
	}
	e.emitAudit(ctx, eventType, false, "", "", errRateLimited, func() map[string]string {
		return map[string]string{
			"scope":  scope,
			"bucket": bucket,
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidRegistration),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrPasswordPolicy):
		return auditErrInvalidInput
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrUserUnavailable):
		return auditErrUserUnavailable
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, errRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInfrastructureUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
