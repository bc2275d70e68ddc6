package rate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every failed Redis round trip.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix is the key namespace used when New gets an empty prefix.
const DefaultPrefix = "ratelimit"

// KEYS[1] bucket
// ARGV[1] now (µs), ARGV[2] cutoff (µs), ARGV[3] limit, ARGV[4] member, ARGV[5] expire (s)
//
// Scores travel as strings; Lua number formatting would lose precision on
// microsecond timestamps.
const slidingWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local count = redis.call("ZCARD", KEYS[1])
if count < tonumber(ARGV[3]) then
  redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
  redis.call("EXPIRE", KEYS[1], ARGV[5])
  return {1, count, ""}
end
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
return {0, count, oldest[2] or ""}
`

var slidingWindowLua = redis.NewScript(slidingWindowScript)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	// FailedOpen is set when Redis was unreachable and the request was let
	// through without being counted.
	FailedOpen bool
}

// Limiter is a Redis-backed sliding-window log limiter.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// New creates a rate [Limiter] backed by the given Redis client. A nil logger
// falls back to slog.Default().
func New(redisClient redis.UniversalClient, prefix string, logger *slog.Logger) *Limiter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		logger: logger,
	}
}

func (l *Limiter) key(bucket string) string {
	return l.prefix + ":" + bucket
}

// Allow counts one request against bucket and reports whether it fits in
// maxRequests per window. Denied requests are not recorded.
func (l *Limiter) Allow(ctx context.Context, bucket string, maxRequests int, window time.Duration) Decision {
	if maxRequests < 0 {
		maxRequests = 0
	}
	if window <= 0 {
		return Decision{Allowed: true, Remaining: maxRequests}
	}

	d, err := l.allow(ctx, bucket, maxRequests, window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
			slog.String("bucket", bucket),
			slog.Any("error", err),
		)
		return Decision{Allowed: true, Remaining: maxRequests, FailedOpen: true}
	}
	return d
}

func (l *Limiter) allow(ctx context.Context, bucket string, maxRequests int, window time.Duration) (Decision, error) {
	now, err := l.redis.Time(ctx).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	nowMicros := now.UnixMicro()
	windowMicros := window.Microseconds()
	expireSeconds := int64(math.Ceil(window.Seconds()))

	res, err := slidingWindowLua.Run(
		ctx,
		l.redis,
		[]string{l.key(bucket)},
		strconv.FormatInt(nowMicros, 10),
		strconv.FormatInt(nowMicros-windowMicros, 10),
		maxRequests,
		strconv.FormatInt(nowMicros, 10)+"-"+uuid.NewString(),
		expireSeconds,
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply %v", ErrRedisUnavailable, res)
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)

	if allowed == 1 {
		return Decision{
			Allowed:   true,
			Remaining: maxRequests - int(count) - 1,
		}, nil
	}

	retry := window
	if oldestRaw, _ := res[2].(string); oldestRaw != "" {
		oldest, err := strconv.ParseFloat(oldestRaw, 64)
		if err == nil {
			retry = time.Duration(int64(oldest)+windowMicros-nowMicros) * time.Microsecond
		}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: roundUpSeconds(retry),
	}, nil
}

// Reset clears bucket.
func (l *Limiter) Reset(ctx context.Context, bucket string) error {
	if err := l.redis.Del(ctx, l.key(bucket)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func roundUpSeconds(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}
