package authcore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "Secret123!"

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]User

	findErr   error
	updateErr error

	updatePasswordCalls int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]User)}
}

func (m *mockUserRepository) FindByUsernameOrEmail(_ context.Context, identifier string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Username == identifier || strings.EqualFold(u.Email, identifier) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *mockUserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrDuplicateUsername
		}
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateEmail
		}
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return m.update(id, func(u *User) {
		m.updatePasswordCalls++
		u.PasswordHash = hash
	})
}

func (m *mockUserRepository) RecordLoginFailure(_ context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	var (
		attempts    int
		lockedUntil *time.Time
	)
	err := m.update(id, func(u *User) {
		u.FailedLoginAttempts++
		if threshold > 0 && u.FailedLoginAttempts >= threshold {
			until := lockUntil
			u.LockedUntil = &until
		}
		attempts = u.FailedLoginAttempts
		if u.LockedUntil != nil {
			until := *u.LockedUntil
			lockedUntil = &until
		}
	})
	return attempts, lockedUntil, err
}

func (m *mockUserRepository) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(u *User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLogin = &at
	})
}

func (m *mockUserRepository) ClearLockout(_ context.Context, id string) error {
	return m.update(id, func(u *User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (m *mockUserRepository) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(u *User) {
		u.IsActive = active
	})
}

func (m *mockUserRepository) update(id string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *mockUserRepository) get(t *testing.T, id string) User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		t.Fatalf("user %s not in repository", id)
	}
	return u
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("engine-test-secret-engine-test-secret")
	cfg.JWT.Issuer = "authcore-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

type testEngine struct {
	*Engine
	users *mockUserRepository
	mr    *miniredis.Miniredis
	rdb   *redis.Client
}

func newTestEngine(t testing.TB, cfg Config, sink AuditSink) *testEngine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})

	users := newMockUserRepository()
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserRepository(users)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEngine{Engine: engine, users: users, mr: mr, rdb: rdb}
}

func (te *testEngine) register(t testing.TB, username string, role Role) *User {
	t.Helper()
	user, err := te.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func (te *testEngine) login(t testing.TB, identifier string) *AuthResult {
	t.Helper()
	res, err := te.Authenticate(context.Background(), identifier, testPassword)
	if err != nil {
		t.Fatalf("authenticate %s: %v", identifier, err)
	}
	return res
}

// advance moves the engine clock forward by d.
func (te *testEngine) advance(d time.Duration) {
	base := te.now()
	te.now = func() time.Time { return base.Add(d) }
}
