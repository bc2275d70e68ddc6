package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every failed Redis round trip.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix is the key namespace used when NewStore gets an empty prefix.
const DefaultPrefix = "blacklist"

const revokedValue = "1"

// Store is a Redis-backed jti blacklist.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a blacklist [Store] backed by the given Redis client.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(jti string) string {
	return s.prefix + ":" + jti
}

// Add marks jti revoked for ttl. A non-positive ttl means the token has
// already expired and nothing is stored.
func (s *Store) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("jti is required")
	}
	if ttl <= 0 {
		return nil
	}

	// Redis EX is whole seconds; round up so the entry never dies before the token.
	if rem := ttl % time.Second; rem != 0 {
		ttl += time.Second - rem
	}

	if err := s.redis.Set(ctx, s.key(jti), revokedValue, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti is on the blacklist.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Remove takes jti off the blacklist. Removing an absent entry is not an error.
func (s *Store) Remove(ctx context.Context, jti string) error {
	if err := s.redis.Del(ctx, s.key(jti)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
