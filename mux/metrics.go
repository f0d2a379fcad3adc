package mux

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks call statistics. All methods are safe for concurrent use.
//
// Example:
//
//	m, _ := mux.New(mux.WithMetrics(true))
//	_, _ = m.Select(nfds, read, write, timeout)
//	stats := m.Metrics()
//	fmt.Printf("P99: %v interrupted: %d\n", stats.Latency.P99, stats.Interrupted)
type Metrics struct {
	Latency LatencyMetrics
	Buffer  BufferMetrics

	readiness   atomic.Int64
	interrupted atomic.Int64
	timedOut    atomic.Int64
	legacy      atomic.Int64
	degraded    atomic.Int64
	probeHits   atomic.Int64
}

// Snapshot is a point in time copy of Metrics.
type Snapshot struct {
	Latency LatencySnapshot

	// BufferMax and BufferAvg describe the Event Buffer depth observed after
	// interrupted calls (EMA, alpha 0.1).
	BufferMax int
	BufferAvg float64

	ReadinessArrived int64
	Interrupted      int64
	TimedOut         int64

	// Legacy counts calls served by the legacy pselect path.
	Legacy int64

	// Degraded counts calls whose readiness waiter could not start.
	Degraded int64

	// ProbeHits counts timeouts converted to readiness by the final probe.
	ProbeHits int64
}

func (m *Metrics) record(kind Kind, elapsed time.Duration) {
	m.Latency.Record(elapsed)
	switch kind {
	case ReadinessArrived:
		m.readiness.Add(1)
	case Interrupted:
		m.interrupted.Add(1)
	case TimedOut:
		m.timedOut.Add(1)
	}
}

// Snapshot computes percentiles and copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	bufMax, bufAvg := m.Buffer.load()
	return Snapshot{
		Latency:          m.Latency.Sample(),
		BufferMax:        bufMax,
		BufferAvg:        bufAvg,
		ReadinessArrived: m.readiness.Load(),
		Interrupted:      m.interrupted.Load(),
		TimedOut:         m.timedOut.Load(),
		Legacy:           m.legacy.Load(),
		Degraded:         m.degraded.Load(),
		ProbeHits:        m.probeHits.Load(),
	}
}

// sampleSize is the number of call latencies retained.
const sampleSize = 1000

// LatencyMetrics keeps a rolling window of call latencies.
type LatencyMetrics struct {
	mu          sync.Mutex
	samples     [sampleSize]time.Duration
	sampleIdx   int
	sampleCount int
	sum         time.Duration
}

// LatencySnapshot holds percentiles computed by [LatencyMetrics.Sample].
type LatencySnapshot struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// Record adds a sample, evicting the oldest once full.
func (l *LatencyMetrics) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}
	l.samples[l.sampleIdx] = d
	l.sum += d
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles over the retained samples.
func (l *LatencyMetrics) Sample() LatencySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return LatencySnapshot{}
	}
	sorted := slices.Clone(l.samples[:count])
	slices.Sort(sorted)
	return LatencySnapshot{
		P50:   sorted[percentileIndex(count, 50)],
		P90:   sorted[percentileIndex(count, 90)],
		P99:   sorted[percentileIndex(count, 99)],
		Max:   sorted[count-1],
		Mean:  l.sum / time.Duration(count),
		Count: count,
	}
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// BufferMetrics tracks Event Buffer depth.
type BufferMetrics struct {
	mu          sync.Mutex
	max         int
	avg         float64
	initialized bool
}

// Update records an observed depth.
func (b *BufferMetrics) Update(depth int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.max = max(b.max, depth)
	// warmstart: EMA initializes to the first observed value
	if !b.initialized {
		b.avg = float64(depth)
		b.initialized = true
	} else {
		b.avg = 0.9*b.avg + 0.1*float64(depth)
	}
}

func (b *BufferMetrics) load() (int, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.max, b.avg
}
