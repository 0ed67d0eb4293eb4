// Package otel publishes goCampus client metrics through an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per client counter and, per
// latency histogram, a cumulative "_bucket" gauge with one data point per "le"
// bound plus a "_count" gauge. One callback reads [goCampus.Client.MetricsSnapshot]
// on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
