package goCampus

import (
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goCampus/api"
)

// MetricID identifies one client counter.
//
// MetricID values are stable within a release; exporters map them to names.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the backend or the network.
	MetricLoginFailure
	// MetricLogout counts logouts.
	MetricLogout
	// MetricSessionRestored counts CheckLogin calls that restored a stored session.
	MetricSessionRestored
	// MetricSessionMissing counts CheckLogin calls that found no usable session.
	MetricSessionMissing
	// MetricUserInfoUpdated counts profile merges.
	MetricUserInfoUpdated
	// MetricStorageFailure counts failed writes to the session mirror.
	MetricStorageFailure
	// MetricRequestSuccess counts calls that resolved with business success.
	MetricRequestSuccess
	// MetricRequestBusinessError counts calls rejected with a non-200 envelope code.
	MetricRequestBusinessError
	// MetricRequestUnauthorized counts calls answered with HTTP 401.
	MetricRequestUnauthorized
	// MetricRequestHTTPStatusError counts calls answered with any other non-200 status.
	MetricRequestHTTPStatusError
	// MetricRequestTransportError counts calls that received no response.
	MetricRequestTransportError
	// MetricRequestDecodeError counts 200 responses that were not an envelope.
	MetricRequestDecodeError
	// MetricUploadSuccess counts successful multipart uploads.
	MetricUploadSuccess
	// MetricUploadFailure counts failed multipart uploads.
	MetricUploadFailure
	// MetricRequestLatency is the latency histogram of JSON calls.
	MetricRequestLatency
	// MetricUploadLatency is the latency histogram of uploads.
	MetricUploadLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free client counters and latency histograms.
//
// A nil or disabled *Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram slices hold
// non-cumulative bucket counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates counters for cfg. Latency histograms need both flags set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. Unknown IDs are ignored. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram of id. Only latency IDs carry histograms.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. It returns empty maps when metrics
// are disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricRequestLatency, MetricUploadLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

// ObserveRequest implements api.Observer.
func (m *Metrics) ObserveRequest(kind api.Kind, elapsed time.Duration) {
	m.Inc(requestMetric(kind))
	m.Observe(MetricRequestLatency, elapsed)
}

// ObserveUpload implements api.Observer.
func (m *Metrics) ObserveUpload(kind api.Kind, elapsed time.Duration) {
	if kind == 0 {
		m.Inc(MetricUploadSuccess)
	} else {
		m.Inc(MetricUploadFailure)
	}
	m.Observe(MetricUploadLatency, elapsed)
}

func requestMetric(kind api.Kind) MetricID {
	switch kind {
	case api.KindBusiness:
		return MetricRequestBusinessError
	case api.KindUnauthorized:
		return MetricRequestUnauthorized
	case api.KindHTTPStatus:
		return MetricRequestHTTPStatusError
	case api.KindTransport:
		return MetricRequestTransportError
	case api.KindDecode:
		return MetricRequestDecodeError
	default:
		return MetricRequestSuccess
	}
}

func isHistogram(id MetricID) bool {
	return id == MetricRequestLatency || id == MetricUploadLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
