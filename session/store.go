package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps every failed Redis round trip.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound is returned when no record exists for the session id.
	ErrNotFound = errors.New("session not found")
	// ErrJTIMismatch is returned when the presented refresh jti is not the one
	// stored for the session.
	ErrJTIMismatch = errors.New("refresh jti mismatch")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
)

// DefaultPrefix is the key namespace used when NewStore gets an empty prefix.
const DefaultPrefix = "session"

const (
	consumeStatusMissing  int64 = 0
	consumeStatusConsumed int64 = 1
	consumeStatusChanged  int64 = 2
)

// Deletes the record and its set entry only if the stored bytes still equal
// the snapshot the caller validated.
const consumeSessionScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  redis.call("SREM", KEYS[2], ARGV[2])
  return 0
end
if data ~= ARGV[1] then
  return 2
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[2])
return 1
`

var consumeSessionLua = redis.NewScript(consumeSessionScript)

// Store is a Redis-backed session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// Create stores the record with the given TTL and indexes it under the user.
// Both writes go in one MULTI/EXEC.
func (s *Store) Create(ctx context.Context, sessionID, userID, refreshJTI string, ttl time.Duration) error {
	if sessionID == "" || userID == "" {
		return errors.New("session id and user id are required")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	data, err := Encode(&Session{
		UserID:     userID,
		RefreshJTI: refreshJTI,
		CreatedAt:  time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get returns the session or ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, _, err := s.load(ctx, sessionID)
	return sess, err
}

func (s *Store) load(ctx context.Context, sessionID string) (*Session, []byte, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.SessionID = sessionID

	return sess, data, nil
}

// Delete removes the session record and its entry in the owner's set.
// Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	sess, _, err := s.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if errors.Is(err, ErrCorrupt) {
			// Owner unknown; drop the record and leave the set entry to
			// resolve as missing.
			if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
			}
			return nil
		}
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(sess.UserID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Consume atomically deletes the session if its stored refresh jti equals
// refreshJTI. Of several callers racing with the same jti exactly one gets
// the session back; the others get ErrNotFound.
func (s *Store) Consume(ctx context.Context, sessionID, refreshJTI string) (*Session, error) {
	sess, raw, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.RefreshJTI != refreshJTI {
		return nil, ErrJTIMismatch
	}

	status, err := consumeSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.userKey(sess.UserID)},
		raw,
		sessionID,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case consumeStatusConsumed:
		return sess, nil
	case consumeStatusChanged:
		return nil, ErrJTIMismatch
	case consumeStatusMissing:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: unexpected consume status %d", ErrRedisUnavailable, status)
	}
}

// DeleteAllForUser removes every session indexed for userID together with
// its set entry, and returns how many session records were actually deleted.
// Set entries whose record already expired are cleared but not counted.
//
// A session created between the SMEMBERS read and the delete is not
// captured; it stays valid until its own expiry or the next call.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	sessionKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sessionKeys = append(sessionKeys, s.key(sessionID))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, sessionKeys...)
		pipe.SRem(ctx, userKey, toInterfaces(sessionIDs)...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(deleted.Val()), nil
}

// CountForUser returns the size of the user's session set. The count can
// include ids whose record has already expired.
func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
