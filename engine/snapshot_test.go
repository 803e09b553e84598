package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/autonomiq/kaizen/engine"
	"github.com/autonomiq/kaizen/telemetry"
)

func TestBufferLatestPerSeries(t *testing.T) {
	buf := engine.NewBuffer(time.Minute, 0)
	now := time.Now()

	buf.Add(telemetry.Sample{Metric: "latency_p99", Segment: "eu-west", Value: 100, Timestamp: now.Add(-2 * time.Second)})
	buf.Add(telemetry.Sample{Metric: "latency_p99", Segment: "eu-west", Value: 200, Timestamp: now})
	buf.Add(telemetry.Sample{Metric: "latency_p99", Segment: "us-east", Value: 50, Timestamp: now})

	v, ok := buf.Latest("latency_p99", "eu-west")
	assert.True(t, ok)
	assert.Equal(t, float64(200), v)

	v, ok = buf.Latest("latency_p99", "us-east")
	assert.True(t, ok)
	assert.Equal(t, float64(50), v)

	_, ok = buf.Latest("latency_p99", "ap-south")
	assert.False(t, ok)
}

func TestBufferLatestIgnoresOutOfOrderSamples(t *testing.T) {
	buf := engine.NewBuffer(time.Minute, 0)
	now := time.Now()

	buf.Add(telemetry.Sample{Metric: "error_rate", Value: 0.5, Timestamp: now})
	buf.Add(telemetry.Sample{Metric: "error_rate", Value: 0.1, Timestamp: now.Add(-10 * time.Second)})

	v, ok := buf.Latest("error_rate", "")
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
}

func TestBufferSnapshotIsDetached(t *testing.T) {
	buf := engine.NewBuffer(time.Minute, 0)
	now := time.Now()

	buf.Add(telemetry.Sample{Metric: "throughput", Value: 10, Timestamp: now.Add(-time.Second)})
	buf.Add(telemetry.Sample{Metric: "throughput", Value: 20, Timestamp: now})

	snap := buf.Snapshot()
	v, ok := snap.Lookup("throughput", "")
	assert.True(t, ok)
	assert.Equal(t, float64(20), v)

	window := snap.WindowSince("throughput", "", time.Minute)
	assert.Len(t, window, 2)

	// Later writes must not leak into an already taken snapshot.
	buf.Add(telemetry.Sample{Metric: "throughput", Value: 30, Timestamp: now.Add(time.Second)})
	v, _ = snap.Lookup("throughput", "")
	assert.Equal(t, float64(20), v)
}

func TestBufferTrimsExpiredSamples(t *testing.T) {
	buf := engine.NewBuffer(10*time.Millisecond, 0)
	old := time.Now().Add(-time.Minute)

	buf.Add(telemetry.Sample{Metric: "cpu", Value: 1, Timestamp: old})
	buf.Add(telemetry.Sample{Metric: "cpu", Value: 2, Timestamp: time.Now()})

	snap := buf.Snapshot()
	window := snap.WindowSince("cpu", "", time.Hour)
	assert.Len(t, window, 1)
	assert.Equal(t, float64(2), window[0].Value)
}
