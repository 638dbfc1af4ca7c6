// Package otel publishes MentorBridge counters through OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter family,
// with the family label (outcome, to, reason, kind) as an attribute, and a
// pair of gauges for the latency buckets keyed by op and le. One callback
// reads [mentorbridge.Engine.MetricsSnapshot] per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
