package mux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyMetrics(t *testing.T) {
	var l LatencyMetrics
	assert.Equal(t, LatencySnapshot{}, l.Sample())

	for i := 1; i <= 100; i++ {
		l.Record(time.Duration(i) * time.Millisecond)
	}
	s := l.Sample()
	assert.Equal(t, 100, s.Count)
	assert.Equal(t, 51*time.Millisecond, s.P50)
	assert.Equal(t, 91*time.Millisecond, s.P90)
	assert.Equal(t, 100*time.Millisecond, s.P99)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 50500*time.Microsecond, s.Mean)
}

func TestLatencyMetrics_Rolling(t *testing.T) {
	var l LatencyMetrics
	for range sampleSize {
		l.Record(time.Second)
	}
	for range sampleSize {
		l.Record(time.Millisecond)
	}
	s := l.Sample()
	assert.Equal(t, sampleSize, s.Count)
	assert.Equal(t, time.Millisecond, s.Max)
	assert.Equal(t, time.Millisecond, s.Mean)
}

func TestBufferMetrics(t *testing.T) {
	var b BufferMetrics
	b.Update(10)
	bufMax, avg := b.load()
	assert.Equal(t, 10, bufMax)
	assert.Equal(t, 10.0, avg)

	b.Update(0)
	bufMax, avg = b.load()
	assert.Equal(t, 10, bufMax)
	assert.InDelta(t, 9.0, avg, 1e-9)
}

func TestPercentileIndex(t *testing.T) {
	assert.Equal(t, 0, percentileIndex(1, 99))
	assert.Equal(t, 9, percentileIndex(10, 99))
	assert.Equal(t, 5, percentileIndex(10, 50))
}

func TestMetrics_Snapshot(t *testing.T) {
	var m Metrics
	m.record(ReadinessArrived, time.Millisecond)
	m.record(Interrupted, 2*time.Millisecond)
	m.record(TimedOut, 3*time.Millisecond)
	m.legacy.Add(1)

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.ReadinessArrived)
	assert.Equal(t, int64(1), s.Interrupted)
	assert.Equal(t, int64(1), s.TimedOut)
	assert.Equal(t, int64(1), s.Legacy)
	assert.Equal(t, 3, s.Latency.Count)
	assert.Equal(t, 2*time.Millisecond, s.Latency.P50)
}
