//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/trackforge/authcore"
	"github.com/trackforge/authcore/internal/storage/memory"
)

const testPassword = "Secret123!"

// redisMode describes which Redis backend a suite runs against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes always includes miniredis. A real standalone Redis is added
// when REDIS_ADDR is set (e.g. "127.0.0.1:6379"). Cluster is not offered:
// a session record and its user index live in different hash slots.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() {
					rdb.FlushDB(context.Background())
					_ = rdb.Close()
				})
				return rdb
			},
		})
	}

	return modes
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("integration-secret-integration-secret")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newEngine(t *testing.T, rdb redis.UniversalClient, cfg authcore.Config) *authcore.Engine {
	t.Helper()

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserRepository(memory.NewUserRepository()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func registerAndLogin(t *testing.T, engine *authcore.Engine, username string) *authcore.AuthResult {
	t.Helper()
	ctx := context.Background()

	if _, err := engine.Register(ctx, authcore.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	res, err := engine.Authenticate(ctx, username, testPassword)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return res
}
