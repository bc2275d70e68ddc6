package authcore

import (
	"context"
	"errors"

	"github.com/trackforge/authcore/session"
)

// Refresh rotates a refresh token: the presented token's jti is blacklisted,
// its session is consumed and a new session with a new token pair replaces
// it. Presenting a rotated-out token fails with [ErrTokenRevoked] or
// [ErrTokenInvalid].
//
// Of several concurrent calls with the same token at most one succeeds.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, e.refreshFailed(ctx, "", "", ErrTokenInvalid)
	}

	revoked, err := e.blacklist.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, e.backendError(ctx, "blacklist.is_revoked", err)
	}
	if revoked {
		e.metricInc(MetricRevokedTokenRejected)
		return nil, e.refreshFailed(ctx, claims.UserID, claims.SessionID, ErrTokenRevoked)
	}

	sess, err := e.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return nil, e.refreshFailed(ctx, claims.UserID, claims.SessionID, ErrSessionExpired)
		}
		return nil, e.backendError(ctx, "session.get", err)
	}
	if sess.RefreshJTI != claims.JTI || sess.UserID != claims.UserID {
		e.metricInc(MetricRefreshReplayRejected)
		e.emitAudit(ctx, auditEventRefreshReplay, false, claims.UserID, claims.SessionID, ErrTokenInvalid, nil)
		return nil, e.refreshFailed(ctx, claims.UserID, claims.SessionID, ErrTokenInvalid)
	}

	user, err := e.users.FindByID(ctx, claims.UserID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, e.repoError(ctx, "users.find_by_id", err)
	}
	if user == nil || !user.IsActive {
		return nil, e.refreshFailed(ctx, claims.UserID, claims.SessionID, ErrUserUnavailable)
	}

	if err := e.blacklist.Add(ctx, claims.JTI, claims.Remaining(e.now())); err != nil {
		return nil, e.backendError(ctx, "blacklist.add", err)
	}

	if _, err := e.sessions.Consume(ctx, claims.SessionID, claims.JTI); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrJTIMismatch) {
			e.metricInc(MetricRefreshReplayRejected)
			return nil, e.refreshFailed(ctx, claims.UserID, claims.SessionID, ErrTokenInvalid)
		}
		return nil, e.backendError(ctx, "session.consume", err)
	}
	e.metricInc(MetricSessionInvalidated)

	pair, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, pair.SessionID, nil, func() map[string]string {
		return map[string]string{"previous_session_id": claims.SessionID}
	})

	return pair, nil
}

func (e *Engine) refreshFailed(ctx context.Context, userID, sessionID string, err error) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, sessionID, err, nil)
	return err
}
