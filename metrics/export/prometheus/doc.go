// Package prometheus renders goCampus client metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads a [goCampus.Client] and exposes an [http.Handler].
// Counter names are prefixed gocampus_*_total; the request and upload latency
// histograms are gocampus_request_latency_seconds and gocampus_upload_latency_seconds
// and appear only when latency histograms are enabled.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
