package internaldefs

import (
	"github.com/trackforge/authcore"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const AuditDroppedName = "authcore_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Login attempts rejected because the account was locked."},
	{ID: authcore.MetricLoginInactive, Name: "authcore_login_inactive_total", Help: "Login attempts rejected because the account was inactive."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh operations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: authcore.MetricRefreshReplayRejected, Name: "authcore_refresh_replay_rejected_total", Help: "Refresh attempts with a rotated-out token."},
	{ID: authcore.MetricRevokedTokenRejected, Name: "authcore_revoked_token_rejected_total", Help: "Tokens rejected because their jti was blacklisted."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logout operations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeInvalidOld, Name: "authcore_password_change_invalid_old_total", Help: "Password change attempts with a wrong current password."},
	{ID: authcore.MetricPasswordRehashed, Name: "authcore_password_rehashed_total", Help: "Password hashes upgraded at login."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Account lock operations."},
	{ID: authcore.MetricAccountActivated, Name: "authcore_account_activated_total", Help: "Account activations."},
	{ID: authcore.MetricAccountDeactivated, Name: "authcore_account_deactivated_total", Help: "Account deactivations."},
	{ID: authcore.MetricAccountUnlocked, Name: "authcore_account_unlocked_total", Help: "Administrative unlocks."},
	{ID: authcore.MetricRateLimitFailOpen, Name: "authcore_rate_limit_fail_open_total", Help: "Rate-limit checks allowed because Redis was unreachable."},
	{ID: authcore.MetricBackendUnavailable, Name: "authcore_backend_unavailable_total", Help: "Operations that hit an unavailable session, blacklist or user store."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthenticateLatency, Name: "authcore_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// BucketCount is the number of engine histogram buckets including +Inf.
const BucketCount = 8

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
