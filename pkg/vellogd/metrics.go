package vellogd

import (
	"expvar"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-vellogd/internal/protocol"
)

// Metrics collects server counters and latencies. It implements the
// observer the event loop reports to, and publishes through expvar so the
// values appear on /debug/vars when an HTTP server is running.
//
// Safe for concurrent use.
type Metrics struct {
	starts        atomic.Int64
	stops         atomic.Int64
	restarts      atomic.Int64
	configReloads atomic.Int64
	connections   atomic.Int64
	requests      atomic.Int64
	draws         atomic.Int64
	frames        atomic.Int64
	patterns      atomic.Int64
	captures      atomic.Int64
	errorsTotal   atomic.Int64
	eventsEmitted atomic.Int64
	recorded      atomic.Int64

	requestLatencyNs    atomic.Int64
	requestLatencyCount atomic.Int64
	presentLatencyNs    atomic.Int64
	presentLatencyCount atomic.Int64

	running atomic.Int32

	registered atomic.Bool
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RegisterExpvar publishes the metrics under vellogd_* names. expvar
// names are global, so only one collector per process may register;
// later calls are no-ops.
func (m *Metrics) RegisterExpvar() {
	if m.registered.Swap(true) || !expvarClaimed.CompareAndSwap(false, true) {
		return
	}

	counters := map[string]*atomic.Int64{
		"vellogd_starts_total":         &m.starts,
		"vellogd_stops_total":          &m.stops,
		"vellogd_restarts_total":       &m.restarts,
		"vellogd_config_reloads_total": &m.configReloads,
		"vellogd_connections_total":    &m.connections,
		"vellogd_requests_total":       &m.requests,
		"vellogd_draws_total":          &m.draws,
		"vellogd_frames_total":         &m.frames,
		"vellogd_patterns_total":       &m.patterns,
		"vellogd_captures_total":       &m.captures,
		"vellogd_errors_total":         &m.errorsTotal,
		"vellogd_events_emitted_total": &m.eventsEmitted,
		"vellogd_recorded_frames":      &m.recorded,
	}
	for name, c := range counters {
		expvar.Publish(name, expvar.Func(func() any { return c.Load() }))
	}

	expvar.Publish("vellogd_running", expvar.Func(func() any { return m.running.Load() }))
	expvar.Publish("vellogd_request_latency_avg_ms", expvar.Func(func() any {
		return avgMillis(m.requestLatencyNs.Load(), m.requestLatencyCount.Load())
	}))
	expvar.Publish("vellogd_present_latency_avg_ms", expvar.Func(func() any {
		return avgMillis(m.presentLatencyNs.Load(), m.presentLatencyCount.Load())
	}))
}

var expvarClaimed atomic.Bool

func avgMillis(total, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count) / 1e6
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Starts        int64
	Stops         int64
	Restarts      int64
	ConfigReloads int64
	Connections   int64
	Requests      int64
	Draws         int64
	Frames        int64
	Patterns      int64
	Captures      int64
	ErrorsTotal   int64
	EventsEmitted int64
	Recorded      int64

	Running bool

	RequestLatencyAvg time.Duration
	PresentLatencyAvg time.Duration
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Starts:        m.starts.Load(),
		Stops:         m.stops.Load(),
		Restarts:      m.restarts.Load(),
		ConfigReloads: m.configReloads.Load(),
		Connections:   m.connections.Load(),
		Requests:      m.requests.Load(),
		Draws:         m.draws.Load(),
		Frames:        m.frames.Load(),
		Patterns:      m.patterns.Load(),
		Captures:      m.captures.Load(),
		ErrorsTotal:   m.errorsTotal.Load(),
		EventsEmitted: m.eventsEmitted.Load(),
		Recorded:      m.recorded.Load(),

		Running: m.running.Load() > 0,

		RequestLatencyAvg: safeDivide(m.requestLatencyNs.Load(), m.requestLatencyCount.Load()),
		PresentLatencyAvg: safeDivide(m.presentLatencyNs.Load(), m.presentLatencyCount.Load()),
	}
}

// RequestHandled records one handled request and its latency.
func (m *Metrics) RequestHandled(kind protocol.Kind, d time.Duration) {
	m.requests.Add(1)
	if kind.IsDraw() {
		m.draws.Add(1)
	}
	m.requestLatencyNs.Add(d.Nanoseconds())
	m.requestLatencyCount.Add(1)
}

// FramePresented records a presented frame and how long presenting took.
func (m *Metrics) FramePresented(d time.Duration) {
	m.frames.Add(1)
	m.presentLatencyNs.Add(d.Nanoseconds())
	m.presentLatencyCount.Add(1)
}

// PatternRegistered records a gradient or tile registration.
func (m *Metrics) PatternRegistered() { m.patterns.Add(1) }

// CaptureCompleted records a finished tile capture.
func (m *Metrics) CaptureCompleted() { m.captures.Add(1) }

// Failure records a request that failed.
func (m *Metrics) Failure(error) { m.errorsTotal.Add(1) }

func (m *Metrics) IncrementStarts()        { m.starts.Add(1) }
func (m *Metrics) IncrementStops()         { m.stops.Add(1) }
func (m *Metrics) IncrementRestarts()      { m.restarts.Add(1) }
func (m *Metrics) IncrementConfigReloads() { m.configReloads.Add(1) }
func (m *Metrics) IncrementConnections()   { m.connections.Add(1) }
func (m *Metrics) IncrementErrors()        { m.errorsTotal.Add(1) }
func (m *Metrics) IncrementEventsEmitted() { m.eventsEmitted.Add(1) }
func (m *Metrics) IncrementRecorded()      { m.recorded.Add(1) }

// SetRunning updates the running gauge.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.running.Store(1)
	} else {
		m.running.Store(0)
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.starts, &m.stops, &m.restarts, &m.configReloads, &m.connections,
		&m.requests, &m.draws, &m.frames, &m.patterns, &m.captures,
		&m.errorsTotal, &m.eventsEmitted, &m.recorded,
		&m.requestLatencyNs, &m.requestLatencyCount,
		&m.presentLatencyNs, &m.presentLatencyCount,
	} {
		c.Store(0)
	}
	m.running.Store(0)
}

func safeDivide(total, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(total / count)
}

var defaultMetrics = NewMetrics()

// DefaultMetrics returns the process-wide collector.
func DefaultMetrics() *Metrics {
	return defaultMetrics
}
