// Package otel binds engine counters to OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads
// [almagestAuth.Engine.MetricsSnapshot] on each collection. Callers own the
// MeterProvider.
package otel
