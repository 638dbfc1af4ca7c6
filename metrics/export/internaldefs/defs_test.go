package internaldefs

import (
	"testing"

	"github.com/mentorbridge/mentorbridge"
)

func TestCumulativePadsAndFolds(t *testing.T) {
	tests := []struct {
		name string
		raw  []uint64
		want [8]uint64
	}{
		{"empty", nil, [8]uint64{}},
		{"short", []uint64{2, 1}, [8]uint64{2, 3, 3, 3, 3, 3, 3, 3}},
		{"full", []uint64{1, 1, 1, 1, 1, 1, 1, 1}, [8]uint64{1, 2, 3, 4, 5, 6, 7, 8}},
		{"overflow into inf", []uint64{0, 0, 0, 0, 0, 0, 0, 1, 4}, [8]uint64{0, 0, 0, 0, 0, 0, 0, 5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cumulative(tc.raw); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEveryCounterExportedOnce(t *testing.T) {
	seen := make(map[mentorbridge.MetricID]string)
	for _, fam := range Families {
		if fam.Label == "" && len(fam.Series) != 1 {
			t.Fatalf("unlabeled family %s has %d series", fam.Name, len(fam.Series))
		}
		for _, s := range fam.Series {
			if prev, ok := seen[s.ID]; ok {
				t.Fatalf("metric %d exported by %s and %s", s.ID, prev, fam.Name)
			}
			seen[s.ID] = fam.Name
		}
	}
	for _, s := range Latencies {
		seen[s.ID] = LatencyName
	}

	snap := mentorbridge.NewMetrics(mentorbridge.MetricsConfig{Enabled: true}).Snapshot()
	for id := range snap.Counters {
		if _, ok := seen[id]; !ok {
			t.Fatalf("counter %d has no exported family", id)
		}
	}
}
