package lifecycle

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory lifecycle counters using atomics.
type Metrics struct {
	startTime    time.Time
	submitted    atomic.Int64
	confirmed    atomic.Int64
	failed       atomic.Int64
	cancelled    atomic.Int64
	pending      atomic.Int64
	deduplicated atomic.Int64
}

// MetricsSnapshot is a point-in-time view of lifecycle metrics.
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Submitted     int64   `json:"submitted"`
	Confirmed     int64   `json:"confirmed"`
	Failed        int64   `json:"failed"`
	Cancelled     int64   `json:"cancelled"`
	Pending       int64   `json:"pending"`
	Deduplicated  int64   `json:"deduplicated"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		Submitted:     m.submitted.Load(),
		Confirmed:     m.confirmed.Load(),
		Failed:        m.failed.Load(),
		Cancelled:     m.cancelled.Load(),
		Pending:       m.pending.Load(),
		Deduplicated:  m.deduplicated.Load(),
	}
}
