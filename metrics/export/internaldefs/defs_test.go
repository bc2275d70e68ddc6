package internaldefs

import (
	"strings"
	"testing"

	"github.com/trackforge/authcore"
	internalmetrics "github.com/trackforge/authcore/internal/metrics"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := make(map[authcore.MetricID]bool, len(CounterDefs))
	names := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate id %d", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("duplicate name %s", def.Name)
		}
		if !strings.HasPrefix(def.Name, "authcore_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %s", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}

	for id := authcore.MetricID(0); id < internalmetrics.MetricIDCount; id++ {
		if id == authcore.MetricAuthenticateLatency {
			continue
		}
		if !seen[id] {
			t.Fatalf("metric id %d has no counter definition", id)
		}
	}
}

func TestBucketsMatchEngineHistogram(t *testing.T) {
	if BucketCount != internalmetrics.HistogramBucketCount {
		t.Fatalf("bucket count %d != engine %d", BucketCount, internalmetrics.HistogramBucketCount)
	}
	if len(HistogramUpperBounds) != BucketCount-1 {
		t.Fatal("bound tables out of sync")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [BucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
