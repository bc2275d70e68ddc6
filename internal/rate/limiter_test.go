package rate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	mr.SetTime(time.Unix(1_700_000_000, 0))
	return New(rdb, "", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))), mr
}

func TestAllowCountsDownThenDenies(t *testing.T) {
	limiter, _ := newLimiterTest(t)
	ctx := context.Background()

	for want := 4; want >= 0; want-- {
		d := limiter.Allow(ctx, "login:10.0.0.1", 5, time.Minute)
		if !d.Allowed {
			t.Fatalf("expected allowed with remaining %d, got %+v", want, d)
		}
		if d.Remaining != want {
			t.Fatalf("expected remaining %d, got %d", want, d.Remaining)
		}
	}

	d := limiter.Allow(ctx, "login:10.0.0.1", 5, time.Minute)
	if d.Allowed {
		t.Fatal("expected sixth request denied")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", d.Remaining)
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("expected retry after 60s, got %v", d.RetryAfter)
	}
}

func TestDeniedRequestsAreNotRecorded(t *testing.T) {
	limiter, mr := newLimiterTest(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		limiter.Allow(ctx, "b", 3, time.Minute)
	}
	members, err := mr.ZMembers("ratelimit:b")
	if err != nil {
		t.Fatalf("ZMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", len(members))
	}
}

func TestRetryAfterTracksOldestEntry(t *testing.T) {
	limiter, mr := newLimiterTest(t)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		mr.SetTime(start.Add(time.Duration(i) * 10 * time.Second))
		if d := limiter.Allow(ctx, "k", 5, time.Minute); !d.Allowed {
			t.Fatalf("call %d unexpectedly denied", i)
		}
	}

	mr.SetTime(start.Add(45*time.Second + 300*time.Millisecond))
	d := limiter.Allow(ctx, "k", 5, time.Minute)
	if d.Allowed {
		t.Fatal("expected denial")
	}
	// Oldest entry leaves the window at start+60s, 14.7s from now.
	if d.RetryAfter != 15*time.Second {
		t.Fatalf("expected retry rounded up to 15s, got %v", d.RetryAfter)
	}
}

func TestWindowSlides(t *testing.T) {
	limiter, mr := newLimiterTest(t)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, "k", 5, time.Minute)
	}
	if d := limiter.Allow(ctx, "k", 5, time.Minute); d.Allowed {
		t.Fatal("expected denial inside the window")
	}

	mr.SetTime(start.Add(61 * time.Second))
	d := limiter.Allow(ctx, "k", 5, time.Minute)
	if !d.Allowed {
		t.Fatal("expected request allowed after the window slid")
	}
	if d.Remaining != 4 {
		t.Fatalf("expected a fresh window, remaining %d", d.Remaining)
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	limiter, _ := newLimiterTest(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		limiter.Allow(ctx, "login:a", 2, time.Minute)
	}
	if d := limiter.Allow(ctx, "login:a", 2, time.Minute); d.Allowed {
		t.Fatal("expected bucket a exhausted")
	}
	if d := limiter.Allow(ctx, "login:b", 2, time.Minute); !d.Allowed {
		t.Fatal("expected bucket b untouched")
	}
}

func TestBucketExpires(t *testing.T) {
	limiter, mr := newLimiterTest(t)

	limiter.Allow(context.Background(), "k", 5, 90*time.Second)
	if ttl := mr.TTL("ratelimit:k"); ttl != 90*time.Second {
		t.Fatalf("expected bucket ttl 90s, got %v", ttl)
	}
}

func TestConcurrentCallersNeverExceedLimit(t *testing.T) {
	limiter, _ := newLimiterTest(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow(ctx, "hot", 5, time.Minute).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 5 {
		t.Fatalf("expected exactly 5 allowed, got %d", got)
	}
}

func TestReset(t *testing.T) {
	limiter, _ := newLimiterTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, "k", 3, time.Minute)
	}
	if err := limiter.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if d := limiter.Allow(ctx, "k", 3, time.Minute); !d.Allowed || d.Remaining != 2 {
		t.Fatalf("expected fresh bucket after reset, got %+v", d)
	}
}

func TestFailsOpenWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	var logs bytes.Buffer
	limiter := New(rdb, "", slog.New(slog.NewTextHandler(&logs, nil)))
	mr.Close()

	d := limiter.Allow(context.Background(), "login:10.0.0.1", 5, time.Minute)
	if !d.Allowed || !d.FailedOpen {
		t.Fatalf("expected fail-open decision, got %+v", d)
	}
	if d.Remaining != 5 {
		t.Fatalf("expected full budget reported, got %d", d.Remaining)
	}
	if !strings.Contains(logs.String(), "rate limiter unavailable") {
		t.Fatalf("expected warning logged, got %q", logs.String())
	}
}

func TestZeroLimitDeniesEverything(t *testing.T) {
	limiter, _ := newLimiterTest(t)

	d := limiter.Allow(context.Background(), "k", 0, 30*time.Second)
	if d.Allowed {
		t.Fatal("expected zero budget to deny")
	}
	if d.RetryAfter != 30*time.Second {
		t.Fatalf("expected retry of one window, got %v", d.RetryAfter)
	}
}

func TestRoundUpSeconds(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{0, time.Second},
		{-time.Second, time.Second},
		{time.Millisecond, time.Second},
		{time.Second, time.Second},
		{1001 * time.Millisecond, 2 * time.Second},
		{time.Minute, time.Minute},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			if got := roundUpSeconds(tc.in); got != tc.want {
				t.Fatalf("roundUpSeconds(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
