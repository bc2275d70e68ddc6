package limiters

import (
	"testing"
	"time"
)

func TestLockoutFailure(t *testing.T) {
	p := LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute}
	now := time.Unix(1_700_000_000, 0)

	threshold, until := p.Failure(now)
	if threshold != 5 {
		t.Fatalf("expected threshold 5, got %d", threshold)
	}
	if !until.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expected lock until now+15m, got %v", until)
	}
}

func TestLockoutReached(t *testing.T) {
	p := LockoutPolicy{Threshold: 3, Duration: time.Minute}

	for attempts, want := range map[int]bool{0: false, 2: false, 3: true, 4: true} {
		if got := p.Reached(attempts); got != want {
			t.Fatalf("Reached(%d) = %v, want %v", attempts, got, want)
		}
	}
}

func TestLockoutDisabled(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	for _, p := range []LockoutPolicy{
		{Threshold: 0, Duration: time.Minute},
		{Threshold: 3, Duration: 0},
	} {
		if p.Enabled() {
			t.Fatalf("expected %+v disabled", p)
		}
		if threshold, _ := p.Failure(now); threshold != 0 {
			t.Fatalf("disabled policy %+v must pass threshold 0, got %d", p, threshold)
		}
		if p.Reached(100) {
			t.Fatalf("disabled policy %+v must never lock", p)
		}
	}
}
