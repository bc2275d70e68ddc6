package authcore

import (
	"context"
	"time"

	"github.com/trackforge/authcore/internal/rate"
)

// RateDecision is the outcome of a rate limit check.
type RateDecision = rate.Decision

const (
	loginBucketPrefix = "login:"
	apiBucketPrefix   = "api:"
)

// AllowLogin charges one login attempt to clientIP's window. When Redis is
// unreachable the attempt is allowed and FailedOpen is set.
func (e *Engine) AllowLogin(ctx context.Context, clientIP string) RateDecision {
	return e.allow(ctx, "login", loginBucketPrefix+clientIP,
		e.config.RateLimit.LoginMaxRequests, e.config.RateLimit.LoginWindow)
}

// AllowRequest charges one request to key's general API window.
func (e *Engine) AllowRequest(ctx context.Context, key string) RateDecision {
	return e.allow(ctx, "api", apiBucketPrefix+key,
		e.config.RateLimit.APIMaxRequests, e.config.RateLimit.APIWindow)
}

// ResetLoginLimit clears clientIP's login window.
func (e *Engine) ResetLoginLimit(ctx context.Context, clientIP string) error {
	if e == nil || e.limiter == nil {
		return ErrEngineNotReady
	}
	if err := e.limiter.Reset(ctx, loginBucketPrefix+clientIP); err != nil {
		return e.backendError(ctx, "ratelimit.reset", err)
	}
	return nil
}

func (e *Engine) allow(ctx context.Context, scope, bucket string, max int, window time.Duration) RateDecision {
	if e == nil || e.limiter == nil || max <= 0 {
		return RateDecision{Allowed: true}
	}

	decision := e.limiter.Allow(ctx, bucket, max, window)
	if decision.FailedOpen {
		e.metricInc(MetricRateLimitFailOpen)
		return decision
	}
	if !decision.Allowed {
		if scope == "login" {
			e.metricInc(MetricLoginRateLimited)
		}
		e.emitRateLimit(ctx, scope, bucket)
	}
	return decision
}
