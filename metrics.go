package authcore

import internalmetrics "github.com/trackforge/authcore/internal/metrics"

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess             = internalmetrics.MetricLoginSuccess
	MetricLoginFailure             = internalmetrics.MetricLoginFailure
	MetricLoginLocked              = internalmetrics.MetricLoginLocked
	MetricLoginInactive            = internalmetrics.MetricLoginInactive
	MetricLoginRateLimited         = internalmetrics.MetricLoginRateLimited
	MetricRegisterSuccess          = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate        = internalmetrics.MetricRegisterDuplicate
	MetricRefreshSuccess           = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure           = internalmetrics.MetricRefreshFailure
	MetricRefreshReplayRejected    = internalmetrics.MetricRefreshReplayRejected
	MetricRevokedTokenRejected     = internalmetrics.MetricRevokedTokenRejected
	MetricSessionCreated           = internalmetrics.MetricSessionCreated
	MetricSessionInvalidated       = internalmetrics.MetricSessionInvalidated
	MetricLogout                   = internalmetrics.MetricLogout
	MetricLogoutAll                = internalmetrics.MetricLogoutAll
	MetricPasswordChangeSuccess    = internalmetrics.MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld = internalmetrics.MetricPasswordChangeInvalidOld
	MetricPasswordRehashed         = internalmetrics.MetricPasswordRehashed
	MetricAccountLocked            = internalmetrics.MetricAccountLocked
	MetricAccountActivated         = internalmetrics.MetricAccountActivated
	MetricAccountDeactivated       = internalmetrics.MetricAccountDeactivated
	MetricAccountUnlocked          = internalmetrics.MetricAccountUnlocked
	MetricRateLimitFailOpen        = internalmetrics.MetricRateLimitFailOpen
	MetricBackendUnavailable       = internalmetrics.MetricBackendUnavailable
	MetricAuthenticateLatency      = internalmetrics.MetricAuthenticateLatency
)

// Metrics holds atomic counters and the optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false, all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
