package internaldefs

import (
	"strings"
	"testing"

	statsclient "github.com/MrEthical07/statsclient"
)

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [BucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}
}

func TestCounterDefsCoverSnapshot(t *testing.T) {
	m := statsclient.NewMetrics(statsclient.MetricsConfig{Enabled: true})
	snap := m.Snapshot()

	seen := make(map[statsclient.MetricID]bool, len(CounterDefs))
	names := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if seen[def.ID] || names[def.Name] {
			t.Fatalf("duplicate definition %+v", def)
		}
		if !strings.HasPrefix(def.Name, "statsclient_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q does not follow naming", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}
	for id := range snap.Counters {
		if !seen[id] {
			t.Fatalf("counter %d has no definition", id)
		}
	}
}

func TestBucketLabels(t *testing.T) {
	got := BucketLabels()
	want := [BucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}
	if got != want {
		t.Fatalf("BucketLabels = %v, want %v", got, want)
	}
}
