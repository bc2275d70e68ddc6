// Package prometheus exposes the engine's counters through a client_golang
// [github.com/prometheus/client_golang/prometheus.Collector].
//
// [NewCollector] wraps an [authcore.Engine]; every scrape reads one
// [authcore.Engine.MetricsSnapshot]. Counter names are authcore_*_total and the
// single histogram is authcore_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the
//     Collector or mount [Handler].
//   - Mutate engine state.
package prometheus
