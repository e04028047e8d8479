// Package prometheus renders engine counters and histograms in Prometheus
// text exposition format.
//
// [NewPrometheusExporter] wraps an [almagestAuth.Engine] and exposes an
// [http.Handler] for a /metrics route. Counter names are prefixed
// almagest_ and end in _total; the only histogram is
// almagest_authenticate_latency_seconds. Nothing is registered globally.
package prometheus
