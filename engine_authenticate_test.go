package authcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trackforge/authcore/password"
)

func TestAuthenticateEndToEnd(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	ctx := context.Background()

	alice, err := te.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@x.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if alice.Role != RoleDeveloper {
		t.Fatalf("expected default role developer, got %q", alice.Role)
	}

	res, err := te.Authenticate(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.ExpiresIn != 15*time.Minute {
		t.Fatalf("expected 15m access ttl, got %v", res.ExpiresIn)
	}

	claims, err := te.tokens.DecodeAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	if claims.UserID != alice.ID {
		t.Fatalf("expected sub %s, got %s", alice.ID, claims.UserID)
	}
	if claims.Role != "developer" {
		t.Fatalf("expected role claim developer, got %s", claims.Role)
	}

	pair, err := te.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.SessionID == claims.SessionID {
		t.Fatal("expected refresh to rotate the session id")
	}

	stored := te.users.get(t, alice.ID)
	if stored.LastLogin == nil {
		t.Fatal("expected last login to be recorded")
	}
}

func TestAuthenticateByEmail(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	te.register(t, "bob", "")

	if _, err := te.Authenticate(context.Background(), "bob@example.com", testPassword); err != nil {
		t.Fatalf("authenticate by email: %v", err)
	}
}

func TestAuthenticateInvalidCredentialsIndistinguishable(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	te.register(t, "carol", "")
	ctx := context.Background()

	_, unknown := te.Authenticate(ctx, "nobody", testPassword)
	_, wrong := te.Authenticate(ctx, "carol", "Wrong123!")
	_, empty := te.Authenticate(ctx, "", "")

	for name, err := range map[string]error{"unknown": unknown, "wrong": wrong, "empty": empty} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if unknown.Error() != wrong.Error() {
		t.Fatalf("messages differ: %q vs %q", unknown, wrong)
	}
}

func TestAuthenticateLockout(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "dave", "")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := te.Authenticate(ctx, "dave", "Wrong123!")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	stored := te.users.get(t, user.ID)
	if stored.FailedLoginAttempts != 5 || stored.LockedUntil == nil {
		t.Fatalf("expected 5 attempts and a lock, got %d / %v", stored.FailedLoginAttempts, stored.LockedUntil)
	}

	_, err := te.Authenticate(ctx, "dave", testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}
	var lockErr *AccountLockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *AccountLockedError, got %T", err)
	}
	if !lockErr.UnlockAt.Equal(*stored.LockedUntil) {
		t.Fatalf("unlock time mismatch: %v vs %v", lockErr.UnlockAt, *stored.LockedUntil)
	}

	te.advance(16 * time.Minute)

	if _, err := te.Authenticate(ctx, "dave", testPassword); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
	stored = te.users.get(t, user.ID)
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected lock cleared, got %d / %v", stored.FailedLoginAttempts, stored.LockedUntil)
	}

	snap := te.MetricsSnapshot()
	if snap.Counters[MetricAccountLocked] != 1 {
		t.Fatalf("expected one lock metric, got %d", snap.Counters[MetricAccountLocked])
	}
	if snap.Counters[MetricLoginLocked] != 1 {
		t.Fatalf("expected one locked login metric, got %d", snap.Counters[MetricLoginLocked])
	}
}

func TestAuthenticateConcurrentFailuresLock(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "ivan", "")
	ctx := context.Background()

	const workers = 20
	var (
		wg      sync.WaitGroup
		invalid atomic.Int64
		locked  atomic.Int64
		other   = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := te.Authenticate(ctx, "ivan", "Wrong123!x")
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				invalid.Add(1)
			case errors.Is(err, ErrAccountLocked):
				locked.Add(1)
			default:
				other <- err
			}
		}()
	}
	wg.Wait()
	close(other)
	for err := range other {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := te.users.get(t, user.ID)
	if int64(stored.FailedLoginAttempts) != invalid.Load() {
		t.Fatalf("expected %d counted failures, got %d", invalid.Load(), stored.FailedLoginAttempts)
	}
	if stored.FailedLoginAttempts < 5 {
		t.Fatalf("expected at least 5 failures, got %d", stored.FailedLoginAttempts)
	}
	if invalid.Load()+locked.Load() != workers {
		t.Fatalf("expected %d responses, got %d", workers, invalid.Load()+locked.Load())
	}
	if stored.LockedUntil == nil {
		t.Fatal("expected a lock deadline")
	}

	_, err := te.Authenticate(ctx, "ivan", testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}
}

func TestAuthenticateFailureAfterLockExpiryRelocks(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "erin", "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = te.Authenticate(ctx, "erin", "Wrong123!")
	}
	te.advance(16 * time.Minute)

	if _, err := te.Authenticate(ctx, "erin", "Wrong123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := te.Authenticate(ctx, "erin", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected immediate re-lock, got %v", err)
	}
	if got := te.users.get(t, user.ID).FailedLoginAttempts; got != 6 {
		t.Fatalf("expected 6 attempts, got %d", got)
	}
}

func TestAuthenticateLockoutDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.Threshold = 0
	te := newTestEngine(t, cfg, nil)
	te.register(t, "frank", "")
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = te.Authenticate(ctx, "frank", "Wrong123!")
	}
	if _, err := te.Authenticate(ctx, "frank", testPassword); err != nil {
		t.Fatalf("expected login with lockout disabled, got %v", err)
	}
}

func TestAuthenticateInactive(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "gina", "")
	ctx := context.Background()

	if err := te.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := te.Authenticate(ctx, "gina", testPassword); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if _, err := te.Authenticate(ctx, "gina", "Wrong123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password on inactive account must stay ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRehashesOutdatedHash(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	ctx := context.Background()

	old, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("old hasher: %v", err)
	}
	oldHash, err := old.Hash(testPassword)
	if err != nil {
		t.Fatalf("old hash: %v", err)
	}
	if err := te.users.Create(ctx, &User{
		ID:           "legacy",
		Username:     "legacy",
		Email:        "legacy@example.com",
		PasswordHash: oldHash,
		Role:         RoleDeveloper,
		IsActive:     true,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := te.Authenticate(ctx, "legacy", testPassword); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	stored := te.users.get(t, "legacy")
	if stored.PasswordHash == oldHash {
		t.Fatal("expected hash to be upgraded")
	}
	if te.hasher.NeedsRehash(stored.PasswordHash) {
		t.Fatal("upgraded hash still needs rehash")
	}
	if te.MetricsSnapshot().Counters[MetricPasswordRehashed] != 1 {
		t.Fatal("expected rehash metric")
	}

	if _, err := te.Authenticate(ctx, "legacy", testPassword); err != nil {
		t.Fatalf("authenticate with upgraded hash: %v", err)
	}
}

func TestAuthenticateRepositoryOutage(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	te.users.findErr = errors.New("connection refused")

	_, err := te.Authenticate(context.Background(), "anyone", testPassword)
	if !errors.Is(err, ErrInfrastructureUnavailable) {
		t.Fatalf("expected ErrInfrastructureUnavailable, got %v", err)
	}
}

func TestAuthenticateSessionStoreOutage(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	te.register(t, "hank", "")
	te.mr.Close()

	_, err := te.Authenticate(context.Background(), "hank", testPassword)
	if !errors.Is(err, ErrInfrastructureUnavailable) {
		t.Fatalf("expected ErrInfrastructureUnavailable, got %v", err)
	}
	if te.MetricsSnapshot().Counters[MetricBackendUnavailable] == 0 {
		t.Fatal("expected backend unavailable metric")
	}
}

func TestAuthenticateRecordsLatency(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	te.register(t, "ivy", "")
	te.login(t, "ivy")

	buckets := te.MetricsSnapshot().Histograms[MetricAuthenticateLatency]
	var total uint64
	for _, n := range buckets {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}

type failingSigner struct {
	tokenCodec
}

func (failingSigner) CreateRefresh(string, string, time.Duration) (string, string, error) {
	return "", "", errors.New("sign refresh token: key is invalid")
}

func TestAuthenticateSigningFailure(t *testing.T) {
	te := newTestEngine(t, testConfig(), nil)
	user := te.register(t, "judy", "")
	te.tokens = failingSigner{tokenCodec: te.tokens}

	_, err := te.Authenticate(context.Background(), "judy", testPassword)
	if !errors.Is(err, ErrTokenIssuance) {
		t.Fatalf("expected ErrTokenIssuance, got %v", err)
	}
	if errors.Is(err, ErrInfrastructureUnavailable) {
		t.Fatalf("signing failure must not report a backend outage: %v", err)
	}
	if n, err := te.sessions.CountForUser(context.Background(), user.ID); err != nil || n != 0 {
		t.Fatalf("expected no session, got %d (%v)", n, err)
	}
}
