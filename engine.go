package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	internalaudit "github.com/trackforge/authcore/internal/audit"
	"github.com/trackforge/authcore/internal/limiters"
	"github.com/trackforge/authcore/internal/rate"
	"github.com/trackforge/authcore/jwt"
	"github.com/trackforge/authcore/password"
	"github.com/trackforge/authcore/revocation"
	"github.com/trackforge/authcore/session"
)

// Engine runs the authentication state machine. It is safe for concurrent
// use once built; it owns no connections and never closes the Redis client
// or the user repository.
type Engine struct {
	config    Config
	users     UserRepository
	sessions  *session.Store
	blacklist *revocation.Store
	limiter   *rate.Limiter
	lockout   limiters.LockoutPolicy
	hasher    *password.Argon2
	hashGate  *semaphore.Weighted
	tokens    tokenCodec
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// tokenCodec is the part of [jwt.Manager] the engine uses.
type tokenCodec interface {
	CreateAccess(userID, role, sessionID string, ttl time.Duration) (string, error)
	CreateRefresh(userID, sessionID string, ttl time.Duration) (string, string, error)
	DecodeAccess(token string) (*jwt.AccessClaims, error)
	DecodeRefresh(token string) (*jwt.RefreshClaims, error)
}

var _ tokenCodec = (*jwt.Manager)(nil)

// Close drains and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.sessions == nil || e.tokens == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) hashPassword(ctx context.Context, plain string) (string, error) {
	if err := e.hashGate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.hashGate.Release(1)

	return e.hasher.Hash(plain)
}

func (e *Engine) verifyPassword(ctx context.Context, plain, encoded string) (bool, error) {
	if err := e.hashGate.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer e.hashGate.Release(1)

	return e.hasher.Verify(plain, encoded), nil
}

// backendError records a store failure and translates it into
// ErrInfrastructureUnavailable.
func (e *Engine) backendError(ctx context.Context, op string, err error) error {
	e.metricInc(MetricBackendUnavailable)
	e.logger.ErrorContext(ctx, "auth backend call failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return fmt.Errorf("%w: %v", ErrInfrastructureUnavailable, err)
}

func (e *Engine) issueError(ctx context.Context, op string, err error) error {
	e.logger.ErrorContext(ctx, "token signing failed",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return fmt.Errorf("%w: %v", ErrTokenIssuance, err)
}

// repoError passes ErrUserNotFound and duplicate errors through untouched
// and treats anything else as a backend failure.
func (e *Engine) repoError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrDuplicateEmail):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return e.backendError(ctx, op, err)
	}
}

// issueSession mints a token pair under a fresh session id and records the
// refresh jti for it.
func (e *Engine) issueSession(ctx context.Context, user *User) (*TokenPair, error) {
	sessionID := uuid.NewString()

	access, err := e.tokens.CreateAccess(user.ID, string(user.Role), sessionID, e.config.JWT.AccessTTL)
	if err != nil {
		return nil, e.issueError(ctx, "jwt.create_access", err)
	}
	refresh, refreshJTI, err := e.tokens.CreateRefresh(user.ID, sessionID, e.config.JWT.RefreshTTL)
	if err != nil {
		return nil, e.issueError(ctx, "jwt.create_refresh", err)
	}

	if err := e.sessions.Create(ctx, sessionID, user.ID, refreshJTI, e.config.JWT.RefreshTTL); err != nil {
		return nil, e.backendError(ctx, "session.create", err)
	}
	e.metricInc(MetricSessionCreated)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		ExpiresIn:    e.config.JWT.AccessTTL,
	}, nil
}

// Authenticate checks identifier (username or email) and password and, on
// success, opens a new session.
//
// A locked account is rejected before the password is looked at. A wrong
// password counts towards the lockout threshold but always reports
// [ErrInvalidCredentials], even on the attempt that triggers the lock.
func (e *Engine) Authenticate(ctx context.Context, identifier, plain string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}
	}()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plain == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	user, err := e.users.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, e.repoError(ctx, "users.find_by_identifier", err)
	}
	if user == nil {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	now := e.now()

	if user.IsLocked(now) {
		lockErr := &AccountLockedError{UnlockAt: *user.LockedUntil}
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", lockErr, func() map[string]string {
			return map[string]string{"unlock_at": lockErr.UnlockAt.UTC().Format(time.RFC3339)}
		})
		return nil, lockErr
	}

	ok, err := e.verifyPassword(ctx, plain, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		threshold, lockUntil := e.lockout.Failure(now)
		attempts, lockedUntil, err := e.users.RecordLoginFailure(ctx, user.ID, threshold, lockUntil)
		if err != nil {
			return nil, e.repoError(ctx, "users.record_login_failure", err)
		}

		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, nil)
		if e.lockout.Reached(attempts) && lockedUntil != nil {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, auditEventAccountLocked, true, user.ID, "", nil, func() map[string]string {
				return map[string]string{"unlock_at": lockedUntil.UTC().Format(time.RFC3339)}
			})
		}
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		e.metricInc(MetricLoginInactive)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	if err := e.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, e.repoError(ctx, "users.record_login_success", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	lastLogin := now
	user.LastLogin = &lastLogin

	e.maybeRehash(ctx, user, plain)

	pair, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, pair.SessionID, nil, nil)

	return &AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// maybeRehash upgrades a hash made with outdated parameters. Failures are
// logged and do not fail the login.
func (e *Engine) maybeRehash(ctx context.Context, user *User, plain string) {
	if !e.config.Password.UpgradeOnLogin || !e.hasher.NeedsRehash(user.PasswordHash) {
		return
	}

	upgraded, err := e.hashPassword(ctx, plain)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
		e.logger.WarnContext(ctx, "password rehash not persisted",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}

	user.PasswordHash = upgraded
	e.metricInc(MetricPasswordRehashed)
}
