package statsclient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one client metric. Every ID before MetricRequestLatency is a counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that stored a token.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the backend or its transport.
	MetricLoginFailure
	// MetricLogout counts local logouts.
	MetricLogout
	// MetricRegisterSuccess counts accepted registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts registrations rejected by the backend or its transport.
	MetricRegisterFailure
	// MetricValidationFailure counts inputs rejected before any network call.
	MetricValidationFailure
	// MetricRequestSuccess counts gateway calls answered with a 2xx status.
	MetricRequestSuccess
	// MetricRequestFailure counts gateway calls answered with another non-auth status.
	MetricRequestFailure
	// MetricUnauthenticated counts gateway calls refused for lack of a token.
	MetricUnauthenticated
	// MetricNetworkFailure counts transport failures.
	MetricNetworkFailure
	// MetricTokenRotated counts New-Token headers applied to the session.
	MetricTokenRotated
	// MetricRotationDiscarded counts New-Token headers dropped because the session moved on.
	MetricRotationDiscarded
	// MetricSessionExpired counts expiry-marked 401 responses.
	MetricSessionExpired
	// MetricPermissionDenied counts other 401/403 responses.
	MetricPermissionDenied
	// MetricPersistFailure counts session persistence errors.
	MetricPersistFailure
	// MetricRequestLatency is the gateway round-trip latency histogram.
	MetricRequestLatency
)

// latencyBounds are the inclusive upper bounds of the first seven latency buckets; the
// eighth bucket takes everything slower.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const (
	latencyBucketCount = len(latencyBounds) + 1
	cacheLineSize      = 64
)

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets [latencyBucketCount]atomic.Uint64
	sumNs   atomic.Int64
}

func (h *latencyHistogram) observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	i := 0
	for i < len(latencyBounds) && d.Truncate(time.Millisecond) > latencyBounds[i] {
		i++
	}
	h.buckets[i].Add(1)
	h.sumNs.Add(int64(d))
}

// Metrics holds lock-free counters and the request latency histogram of one Client.
// A nil *Metrics records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricRequestLatency]paddedCounter
	latency       latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of a Client's metrics. Histograms and Sums are
// keyed by MetricRequestLatency and empty when latency recording is off.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	Sums       map[MetricID]time.Duration
}

// NewMetrics returns a Metrics honoring cfg.
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

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricRequestLatency {
		return
	}
	m.counters[id].value.Add(1)
}

// Observe records d in the histogram id. Only MetricRequestLatency has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricRequestLatency {
		return
	}
	m.latency.observe(d)
}

// Value returns the current counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricRequestLatency {
		return 0
	}
	return m.counters[id].value.Load()
}

// Snapshot copies every counter and, when enabled, the latency buckets and their sum.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
		Sums:       map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < MetricRequestLatency; id++ {
		s.Counters[id] = m.counters[id].value.Load()
	}

	if m.enableLatency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = m.latency.buckets[i].Load()
		}
		s.Histograms[MetricRequestLatency] = buckets
		s.Sums[MetricRequestLatency] = time.Duration(m.latency.sumNs.Load())
	}

	return s
}
