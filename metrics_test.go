package statsclient

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricTokenRotated)
	m.Inc(MetricTokenRotated)
	m.Inc(MetricTokenRotated)

	if got := m.Value(MetricTokenRotated); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRequestSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRequestSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricRequestLatency, d)
	}
	// only the latency metric has buckets
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricRequestLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("unexpected histogram for a counter metric")
	}
	if got := snap.Sums[MetricRequestLatency]; got != 1640*time.Millisecond {
		t.Fatalf("expected latency sum 1.64s, got %s", got)
	}
}

func TestMetricsLatencyBucketEdges(t *testing.T) {
	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{-time.Second, 0},
		{0, 0},
		{5*time.Millisecond + 900*time.Microsecond, 0},
		{6 * time.Millisecond, 1},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range cases {
		m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
		m.Observe(MetricRequestLatency, tc.d)
		buckets := m.Snapshot().Histograms[MetricRequestLatency]
		if buckets[tc.bucket] != 1 {
			t.Fatalf("%s: expected bucket %d, got %v", tc.d, tc.bucket, buckets)
		}
	}
}

func TestMetricsCounterIDsExcludeLatency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricRequestLatency)
	m.Inc(MetricID(999))

	snap := m.Snapshot()
	if _, ok := snap.Counters[MetricRequestLatency]; ok {
		t.Fatal("latency must not appear as a counter")
	}
	if len(snap.Counters) != int(MetricRequestLatency) {
		t.Fatalf("expected %d counters, got %d", MetricRequestLatency, len(snap.Counters))
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: false,
	})
	m.Inc(MetricSessionExpired)
	m.Inc(MetricPermissionDenied)
	m.Inc(MetricPermissionDenied)
	m.Observe(MetricRequestLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricSessionExpired] != 1 {
		t.Fatalf("expected MetricSessionExpired=1 got %d", snap.Counters[MetricSessionExpired])
	}
	if snap.Counters[MetricPermissionDenied] != 2 {
		t.Fatalf("expected MetricPermissionDenied=2 got %d", snap.Counters[MetricPermissionDenied])
	}
	if len(snap.Histograms) != 0 {
		t.Fatalf("expected no histograms with latency disabled, got %v", snap.Histograms)
	}
}
