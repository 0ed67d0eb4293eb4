package internaldefs

import (
	goCampus "github.com/MrEthical07/goCampus"
)

// CounterDef maps one client counter to its exported name.
type CounterDef struct {
	ID   goCampus.MetricID
	Name string
	Help string
}

// HistogramDef maps one latency histogram to its exported name.
type HistogramDef struct {
	ID   goCampus.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goCampus.MetricLoginSuccess, Name: "gocampus_login_success_total", Help: "Logins that produced a session."},
	{ID: goCampus.MetricLoginFailure, Name: "gocampus_login_failure_total", Help: "Logins rejected by the backend or the network."},
	{ID: goCampus.MetricLogout, Name: "gocampus_logout_total", Help: "Logout operations."},
	{ID: goCampus.MetricSessionRestored, Name: "gocampus_session_restored_total", Help: "Sessions restored from storage."},
	{ID: goCampus.MetricSessionMissing, Name: "gocampus_session_missing_total", Help: "Session checks that found no usable session."},
	{ID: goCampus.MetricUserInfoUpdated, Name: "gocampus_user_info_updated_total", Help: "User profile merges."},
	{ID: goCampus.MetricStorageFailure, Name: "gocampus_storage_failure_total", Help: "Failed writes to the session mirror."},
	{ID: goCampus.MetricRequestSuccess, Name: "gocampus_request_success_total", Help: "API calls answered with business success."},
	{ID: goCampus.MetricRequestBusinessError, Name: "gocampus_request_business_error_total", Help: "API calls answered with a non-200 envelope code."},
	{ID: goCampus.MetricRequestUnauthorized, Name: "gocampus_request_unauthorized_total", Help: "API calls answered with HTTP 401."},
	{ID: goCampus.MetricRequestHTTPStatusError, Name: "gocampus_request_http_status_error_total", Help: "API calls answered with another non-200 status."},
	{ID: goCampus.MetricRequestTransportError, Name: "gocampus_request_transport_error_total", Help: "API calls that received no response."},
	{ID: goCampus.MetricRequestDecodeError, Name: "gocampus_request_decode_error_total", Help: "API responses that were not an envelope."},
	{ID: goCampus.MetricUploadSuccess, Name: "gocampus_upload_success_total", Help: "Successful multipart uploads."},
	{ID: goCampus.MetricUploadFailure, Name: "gocampus_upload_failure_total", Help: "Failed multipart uploads."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goCampus.MetricRequestLatency, Name: "gocampus_request_latency_seconds", Help: "API call latency histogram."},
	{ID: goCampus.MetricUploadLatency, Name: "gocampus_upload_latency_seconds", Help: "Upload latency histogram."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "gocampus_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramBounds are the upper bounds, in seconds, of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}


// NormalizeBuckets pads or truncates raw to eight buckets. A missing histogram
// becomes all zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form exporters use.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
