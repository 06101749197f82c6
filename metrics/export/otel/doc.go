// Package otel publishes engine metrics through OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// [sessionauth.Engine.MetricsSnapshot] on each collection cycle. Callers own the
// MeterProvider; [NewGlobalExporter] uses the global one.
package otel
