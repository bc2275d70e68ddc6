package limiters

import "time"

// LockoutPolicy decides when repeated failed logins lock an account. It holds
// no state of its own: the counter and the lock deadline live on the user
// record, and the repository increments the counter atomically.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// Enabled reports whether the policy ever locks.
func (p LockoutPolicy) Enabled() bool {
	return p.Threshold > 0 && p.Duration > 0
}

// Failure returns the arguments for recording one failed login at now: the
// threshold to lock at (0 when disabled) and the deadline such a lock gets.
func (p LockoutPolicy) Failure(now time.Time) (threshold int, lockUntil time.Time) {
	if !p.Enabled() {
		return 0, time.Time{}
	}
	return p.Threshold, now.Add(p.Duration)
}

// Reached reports whether attempts failures lock the account. The count is
// not reset by locking, so a failure after the lock ends re-locks at once.
func (p LockoutPolicy) Reached(attempts int) bool {
	return p.Enabled() && attempts >= p.Threshold
}
