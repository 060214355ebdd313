package server

import (
	"context"
	"sync/atomic"
	"time"

	"fshuttle/internal/logger"
)

// Metrics tracks process-wide operation counters. All fields use atomic
// operations so handlers never contend on a lock; the reporter only reads.
type Metrics struct {
	succeeded atomic.Uint64 // connections whose command completed
	failed    atomic.Uint64 // connections that ended in any failure

	connectionsTotal   atomic.Uint64
	connectionsCurrent atomic.Int32

	bytesIn  atomic.Uint64 // payload bytes received (uploads)
	bytesOut atomic.Uint64 // payload bytes sent (downloads)

	startTime time.Time
}

// NewMetrics returns a zeroed metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordOutcome counts the terminal outcome of one connection. Each
// connection must call this exactly once.
func (m *Metrics) RecordOutcome(ok bool) {
	if ok {
		m.succeeded.Add(1)
	} else {
		m.failed.Add(1)
	}
}

// RecordConnection counts an accepted connection.
func (m *Metrics) RecordConnection() {
	m.connectionsTotal.Add(1)
	m.connectionsCurrent.Add(1)
}

// RecordConnectionClosed marks a connection as finished.
func (m *Metrics) RecordConnectionClosed() {
	m.connectionsCurrent.Add(-1)
}

// RecordBytesIn adds received payload bytes.
func (m *Metrics) RecordBytesIn(n int64) {
	if n > 0 {
		m.bytesIn.Add(uint64(n))
	}
}

// RecordBytesOut adds sent payload bytes.
func (m *Metrics) RecordBytesOut(n int64) {
	if n > 0 {
		m.bytesOut.Add(uint64(n))
	}
}

// Snapshot is a point-in-time view of the counters, safe to read without
// synchronization after creation.
type Snapshot struct {
	Uptime             time.Duration
	Succeeded          uint64
	Failed             uint64
	ConnectionsTotal   uint64
	ConnectionsCurrent int32
	BytesIn            uint64
	BytesOut           uint64
}

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Uptime:             time.Since(m.startTime),
		Succeeded:          m.succeeded.Load(),
		Failed:             m.failed.Load(),
		ConnectionsTotal:   m.connectionsTotal.Load(),
		ConnectionsCurrent: m.connectionsCurrent.Load(),
		BytesIn:            m.bytesIn.Load(),
		BytesOut:           m.bytesOut.Load(),
	}
}

// LogSnapshot emits one stats line at INFO level.
func (m *Metrics) LogSnapshot() {
	snap := m.Snapshot()
	logger.Info("[STATS] uptime=%v success=%d failed=%d conns=%d active=%d in=%dB out=%dB",
		snap.Uptime.Round(time.Second), snap.Succeeded, snap.Failed,
		snap.ConnectionsTotal, snap.ConnectionsCurrent, snap.BytesIn, snap.BytesOut)
}

// startReporter periodically logs a snapshot until the context is cancelled.
// Purely observational: it never mutates counters or blocks a handler.
func (m *Metrics) startReporter(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.LogSnapshot()
			}
		}
	}()
}
