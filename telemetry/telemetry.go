package telemetry

import (
	"math"
	"time"
)

// Sample is a single metric observation arriving from the telemetry stream.
type Sample struct {
	Metric    string    `json:"metric"`
	Segment   string    `json:"segment"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Key identifies the (metric, segment) series a sample belongs to.
func (s Sample) Key() string {
	return s.Metric + "/" + s.Segment
}

// Valid reports whether the sample can be processed at all. Non-finite
// values and unnamed metrics are dropped at the boundary.
func (s Sample) Valid() bool {
	if s.Metric == "" {
		return false
	}

	return !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// Snapshot is a point-in-time view over the ingested series, handed to the
// rule engine on every scheduling tick. Latest holds the most recent sample
// per series key, Window the trailing samples retained for window
// aggregates. Snapshots are value copies; evaluating one never mutates it.
type Snapshot struct {
	TakenAt time.Time           `json:"taken_at"`
	Latest  map[string]Sample   `json:"latest"`
	Window  map[string][]Sample `json:"window,omitempty"`
}

// Lookup returns the latest value for a series.
func (s Snapshot) Lookup(metric, segment string) (float64, bool) {
	sample, ok := s.Latest[metric+"/"+segment]
	if !ok {
		return 0, false
	}

	return sample.Value, true
}

// WindowSince returns trailing samples for a series not older than the
// given duration, measured from the snapshot time.
func (s Snapshot) WindowSince(metric, segment string, d time.Duration) []Sample {
	samples := s.Window[metric+"/"+segment]
	if len(samples) == 0 {
		return nil
	}

	cutoff := s.TakenAt.Add(-d)
	out := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		if !sample.Timestamp.Before(cutoff) {
			out = append(out, sample)
		}
	}

	return out
}
