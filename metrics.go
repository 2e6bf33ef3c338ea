package fetchq

import (
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

// LatencyBuckets defines the latency histogram bucket upper bounds in
// nanoseconds, from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for an engine. All counters are
// atomic; the I/O-side observers update them from worker goroutines while
// the user side reads snapshots.
type Metrics struct {
	// submission counters
	Sends       atomic.Uint64 // accepted submissions
	SendRejects atomic.Uint64 // rejected submissions (validation, pool, queue)

	// I/O step counters
	OpenOps  atomic.Uint64 // opening steps
	FetchOps atomic.Uint64 // fetching steps

	FetchedBytes atomic.Uint64 // total bytes delivered to bound buffers

	OpenErrors  atomic.Uint64 // failed opening steps
	FetchErrors atomic.Uint64 // failed fetching steps

	// lifecycle counters
	CancelledOps atomic.Uint64 // requests terminated by Cancel
	PausedTicks  atomic.Uint64 // paused responses delivered

	// lane statistics
	LaneOccupancyTotal atomic.Uint64 // cumulative occupied-lane samples
	LaneOccupancyCount atomic.Uint64 // number of samples
	MaxLaneOccupancy   atomic.Uint32 // maximum observed occupied lanes

	// latency tracking
	TotalLatencyNs atomic.Uint64
	StepCount      atomic.Uint64

	// cumulative histogram: bucket[i] counts steps with latency <= LatencyBuckets[i]
	LatencyHistogram [numLatencyBuckets]atomic.Uint64

	// lifecycle timestamps (UnixNano)
	StartTime    atomic.Int64
	StopTime     atomic.Int64
	LastActivity atomic.Int64

	// cached clock for the hot-path LastActivity stamp
	clock *timecache.TimeCache
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{
		clock: timecache.NewWithResolution(time.Millisecond),
	}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSend records a submission attempt.
func (m *Metrics) RecordSend(accepted bool) {
	if accepted {
		m.Sends.Add(1)
	} else {
		m.SendRejects.Add(1)
	}
}

// RecordOpen records one opening step.
func (m *Metrics) RecordOpen(latencyNs uint64, success bool) {
	m.OpenOps.Add(1)
	if !success {
		m.OpenErrors.Add(1)
	}
	m.recordStep(latencyNs)
}

// RecordFetch records one fetching step.
func (m *Metrics) RecordFetch(bytes uint64, latencyNs uint64, success bool) {
	m.FetchOps.Add(1)
	if success {
		m.FetchedBytes.Add(bytes)
	} else {
		m.FetchErrors.Add(1)
	}
	m.recordStep(latencyNs)
}

// RecordCancelled records a request terminated by cancellation.
func (m *Metrics) RecordCancelled() {
	m.CancelledOps.Add(1)
}

// RecordPausedTick records one paused response delivery.
func (m *Metrics) RecordPausedTick() {
	m.PausedTicks.Add(1)
}

// RecordLaneOccupancy records the number of occupied lanes on a channel at
// a pump boundary.
func (m *Metrics) RecordLaneOccupancy(occupied uint32) {
	m.LaneOccupancyTotal.Add(uint64(occupied))
	m.LaneOccupancyCount.Add(1)
	for {
		current := m.MaxLaneOccupancy.Load()
		if occupied <= current {
			break
		}
		if m.MaxLaneOccupancy.CompareAndSwap(current, occupied) {
			break
		}
	}
}

// recordStep records step latency and stamps the activity time from the
// cached clock, keeping the per-step cost flat.
func (m *Metrics) recordStep(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.StepCount.Add(1)
	m.LastActivity.Store(m.clock.CachedTime().UnixNano())
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyHistogram[i].Add(1)
		}
	}
}

// Stop marks the engine as stopped and releases the cached clock.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
	m.clock.Stop()
}

// MetricsSnapshot is a point-in-time snapshot of engine metrics.
type MetricsSnapshot struct {
	Sends       uint64
	SendRejects uint64

	OpenOps      uint64
	FetchOps     uint64
	FetchedBytes uint64
	OpenErrors   uint64
	FetchErrors  uint64

	CancelledOps uint64
	PausedTicks  uint64

	AvgLaneOccupancy float64
	MaxLaneOccupancy uint32

	AvgStepLatencyNs uint64
	LatencyHistogram [numLatencyBuckets]uint64

	UptimeNs       uint64
	LastActivityNs int64

	// computed statistics
	FetchBandwidth float64 // bytes per second of uptime
	ErrorRate      float64 // failed steps / total steps, in percent
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Sends:            m.Sends.Load(),
		SendRejects:      m.SendRejects.Load(),
		OpenOps:          m.OpenOps.Load(),
		FetchOps:         m.FetchOps.Load(),
		FetchedBytes:     m.FetchedBytes.Load(),
		OpenErrors:       m.OpenErrors.Load(),
		FetchErrors:      m.FetchErrors.Load(),
		CancelledOps:     m.CancelledOps.Load(),
		PausedTicks:      m.PausedTicks.Load(),
		MaxLaneOccupancy: m.MaxLaneOccupancy.Load(),
		LastActivityNs:   m.LastActivity.Load(),
	}
	for i := range snap.LatencyHistogram {
		snap.LatencyHistogram[i] = m.LatencyHistogram[i].Load()
	}
	if count := m.LaneOccupancyCount.Load(); count > 0 {
		snap.AvgLaneOccupancy = float64(m.LaneOccupancyTotal.Load()) / float64(count)
	}
	if steps := m.StepCount.Load(); steps > 0 {
		snap.AvgStepLatencyNs = m.TotalLatencyNs.Load() / steps
		snap.ErrorRate = float64(snap.OpenErrors+snap.FetchErrors) / float64(steps) * 100.0
	}
	end := m.StopTime.Load()
	if end == 0 {
		end = time.Now().UnixNano()
	}
	if start := m.StartTime.Load(); end > start {
		snap.UptimeNs = uint64(end - start)
		snap.FetchBandwidth = float64(snap.FetchedBytes) / (float64(snap.UptimeNs) / 1e9)
	}
	return snap
}

// Observer collects per-step statistics from the I/O side. Implementations
// must be safe for concurrent use; the step methods are called from channel
// worker goroutines (or async completions), ObserveLaneOccupancy from the
// pump on the engine's owning goroutine.
type Observer interface {
	ObserveOpen(latencyNs uint64, success bool)
	ObserveFetch(bytes uint64, latencyNs uint64, success bool)
	ObserveLaneOccupancy(occupied uint32)
}

// NoOpObserver discards all observations.
type NoOpObserver struct{}

func (NoOpObserver) ObserveOpen(latencyNs uint64, success bool) {}

func (NoOpObserver) ObserveFetch(bytes uint64, latencyNs uint64, success bool) {}

func (NoOpObserver) ObserveLaneOccupancy(occupied uint32) {}

// MetricsObserver forwards observations into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer backed by the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveOpen(latencyNs uint64, success bool) {
	o.metrics.RecordOpen(latencyNs, success)
}

func (o *MetricsObserver) ObserveFetch(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordFetch(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveLaneOccupancy(occupied uint32) {
	o.metrics.RecordLaneOccupancy(occupied)
}
