// Package otel publishes mailAuth engine metrics through an OpenTelemetry
// Meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per latency bucket. Callers own the MeterProvider.
package otel
