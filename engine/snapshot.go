package engine

import (
	"sync"
	"time"

	"github.com/autonomiq/kaizen/telemetry"
)

const (
	defaultRetention    = 15 * time.Minute
	defaultSeriesBound  = 512
	defaultSampleBuffer = 4096
)

// Buffer accumulates ingested telemetry between evaluation cycles and
// materializes the immutable snapshot handed to the rule engine. It also
// serves as the dispatcher's metric reader during observation windows.
type Buffer struct {
	mu        sync.Mutex
	latest    map[string]telemetry.Sample
	window    map[string][]telemetry.Sample
	retention time.Duration
	bound     int
}

func NewBuffer(retention time.Duration, bound int) *Buffer {
	if retention <= 0 {
		retention = defaultRetention
	}
	if bound <= 0 {
		bound = defaultSeriesBound
	}

	return &Buffer{
		latest:    make(map[string]telemetry.Sample),
		window:    make(map[string][]telemetry.Sample),
		retention: retention,
		bound:     bound,
	}
}

func (b *Buffer) Add(sample telemetry.Sample) {
	key := sample.Key()

	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.latest[key]; !ok || sample.Timestamp.After(cur.Timestamp) {
		b.latest[key] = sample
	}

	series := append(b.window[key], sample)

	cutoff := time.Now().Add(-b.retention)
	start := 0
	for start < len(series) && series[start].Timestamp.Before(cutoff) {
		start++
	}
	series = series[start:]
	if len(series) > b.bound {
		series = series[len(series)-b.bound:]
	}
	b.window[key] = series
}

// Snapshot copies the buffered series into an immutable view. The copy
// decouples rule evaluation from concurrent ingestion.
func (b *Buffer) Snapshot() telemetry.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := telemetry.Snapshot{
		TakenAt: time.Now(),
		Latest:  make(map[string]telemetry.Sample, len(b.latest)),
		Window:  make(map[string][]telemetry.Sample, len(b.window)),
	}
	for k, v := range b.latest {
		snap.Latest[k] = v
	}
	for k, series := range b.window {
		cp := make([]telemetry.Sample, len(series))
		copy(cp, series)
		snap.Window[k] = cp
	}

	return snap
}

// Latest implements remediation.MetricReader.
func (b *Buffer) Latest(metric, segment string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sample, ok := b.latest[metric+"/"+segment]
	if !ok {
		return 0, false
	}

	return sample.Value, true
}
