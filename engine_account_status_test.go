package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestSetActiveDeactivateEndsSessions(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "alice", "")
	ctx := context.Background()
	res := te.login(t, "alice")

	if err := te.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if te.users.get(t, user.ID).IsActive {
		t.Fatal("expected inactive user")
	}
	if _, err := te.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSetActiveActivateClearsLockout(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "bob", "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = te.Authenticate(ctx, "bob", "Wrong123!")
	}
	if _, err := te.Authenticate(ctx, "bob", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lock, got %v", err)
	}

	if err := te.SetActive(ctx, user.ID, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	stored := te.users.get(t, user.ID)
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected lockout cleared, got %d / %v", stored.FailedLoginAttempts, stored.LockedUntil)
	}
	te.login(t, "bob")
}

func TestUnlock(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "carol", "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = te.Authenticate(ctx, "carol", "Wrong123!")
	}
	if err := te.Unlock(ctx, user.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	te.login(t, "carol")

	if err := te.Unlock(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetActiveUnknownUser(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	if err := te.SetActive(context.Background(), "missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
