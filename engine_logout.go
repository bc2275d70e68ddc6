package authcore

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Logout revokes whatever it can decode from the two tokens and deletes the
// sessions they name. It never reports failure: an undecodable or expired
// token counts as already logged out, and store errors are only logged.
// refreshToken may be empty.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) {
	if e.ready() != nil {
		return
	}

	now := e.now()
	var userID, sessionID string

	if accessToken != "" {
		if claims, err := e.tokens.DecodeAccess(accessToken); err == nil {
			userID, sessionID = claims.UserID, claims.SessionID
			e.revokeBestEffort(ctx, claims.JTI, claims.Remaining(now))
			e.deleteSessionBestEffort(ctx, claims.SessionID)
		}
	}

	if refreshToken != "" {
		if claims, err := e.tokens.DecodeRefresh(refreshToken); err == nil {
			if userID == "" {
				userID = claims.UserID
			}
			e.revokeBestEffort(ctx, claims.JTI, claims.Remaining(now))
			if claims.SessionID != sessionID {
				e.deleteSessionBestEffort(ctx, claims.SessionID)
			}
			if sessionID == "" {
				sessionID = claims.SessionID
			}
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, userID, sessionID, nil, nil)
}

func (e *Engine) revokeBestEffort(ctx context.Context, jti string, ttl time.Duration) {
	if err := e.blacklist.Add(ctx, jti, ttl); err != nil {
		e.metricInc(MetricBackendUnavailable)
		e.logger.WarnContext(ctx, "logout: blacklist write failed",
			slog.String("jti", jti),
			slog.Any("error", err),
		)
	}
}

func (e *Engine) deleteSessionBestEffort(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		e.metricInc(MetricBackendUnavailable)
		e.logger.WarnContext(ctx, "logout: session delete failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		return
	}
	e.metricInc(MetricSessionInvalidated)
}

// LogoutAll deletes every session of userID and returns how many were live.
// Access tokens already issued stay valid until they expire.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	count, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, e.backendError(ctx, "session.delete_all", err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"sessions": strconv.Itoa(count)}
	})

	return count, nil
}

// SessionCount returns the size of the user's session index. It can include
// sessions that expired but were not yet cleared.
func (e *Engine) SessionCount(ctx context.Context, userID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	count, err := e.sessions.CountForUser(ctx, userID)
	if err != nil {
		return 0, e.backendError(ctx, "session.count", err)
	}
	return count, nil
}
