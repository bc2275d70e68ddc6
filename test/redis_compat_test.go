//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"

	"github.com/trackforge/authcore"
)

func TestRedisCompatLifecycle(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			engine := newEngine(t, mode.setup(t), testConfig())

			first := registerAndLogin(t, engine, "alice")
			second, err := engine.Authenticate(ctx, "alice@example.com", testPassword)
			if err != nil {
				t.Fatalf("second Authenticate failed: %v", err)
			}

			n, err := engine.SessionCount(ctx, first.User.ID)
			if err != nil || n != 2 {
				t.Fatalf("SessionCount = %d, %v; want 2", n, err)
			}

			p, err := engine.ValidateAccess(ctx, first.AccessToken)
			if err != nil {
				t.Fatalf("ValidateAccess failed: %v", err)
			}
			if p.User.Username != "alice" || p.Claims.SessionID != first.SessionID {
				t.Fatalf("unexpected principal: %+v", p.Claims)
			}

			pair, err := engine.Refresh(ctx, first.RefreshToken)
			if err != nil {
				t.Fatalf("Refresh failed: %v", err)
			}
			if _, err := engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, authcore.ErrTokenRevoked) {
				t.Fatalf("expected ErrTokenRevoked on reuse, got %v", err)
			}

			engine.Logout(ctx, pair.AccessToken, pair.RefreshToken)
			if _, err := engine.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, authcore.ErrTokenRevoked) {
				t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
			}

			deleted, err := engine.LogoutAll(ctx, first.User.ID)
			if err != nil {
				t.Fatalf("LogoutAll failed: %v", err)
			}
			if deleted != 1 {
				t.Fatalf("expected 1 remaining session deleted, got %d", deleted)
			}
			if _, err := engine.Refresh(ctx, second.RefreshToken); !errors.Is(err, authcore.ErrSessionExpired) {
				t.Fatalf("expected ErrSessionExpired after LogoutAll, got %v", err)
			}
		})
	}
}

func TestRedisCompatLoginRateLimit(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig()
			cfg.RateLimit.LoginMaxRequests = 3
			engine := newEngine(t, mode.setup(t), cfg)

			for i := 0; i < 3; i++ {
				if d := engine.AllowLogin(ctx, "203.0.113.9"); !d.Allowed {
					t.Fatalf("attempt %d unexpectedly denied", i+1)
				}
			}
			d := engine.AllowLogin(ctx, "203.0.113.9")
			if d.Allowed || d.RetryAfter <= 0 {
				t.Fatalf("expected denial with retry-after, got %+v", d)
			}
			if d := engine.AllowLogin(ctx, "203.0.113.10"); !d.Allowed {
				t.Fatal("other IP must have its own window")
			}
		})
	}
}
