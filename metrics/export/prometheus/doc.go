// Package prometheus exposes mailAuth engine metrics as a Prometheus
// collector.
//
// [NewCollector] wraps an Engine; register it with any prometheus.Registerer
// or mount [Handler] to serve it from a private registry. Counter names are
// prefixed mailauth_*_total; the single histogram is
// mailauth_authenticate_latency_seconds.
package prometheus
