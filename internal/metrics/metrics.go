// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a supportd server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one server.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive  atomic.Int64
	sessionsTotal   atomic.Int64
	framesIn        atomic.Int64
	framesOut       atomic.Int64
	bytesIn         atomic.Int64
	bytesOut        atomic.Int64
	frameErrors     atomic.Int64
	busyRejections  atomic.Int64
	forcedCloses    atomic.Int64
	sessionFailures atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the current number of live sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── Frame metrics ────────────────────────────────────────────────────

// FrameReceived records one decoded frame of n wire bytes.
func (c *Collector) FrameReceived(n int) {
	if c == nil {
		return
	}
	c.framesIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// FrameSent records one written frame of n wire bytes.
func (c *Collector) FrameSent(n int) {
	if c == nil {
		return
	}
	c.framesOut.Add(1)
	c.bytesOut.Add(int64(n))
}

// FramesIn returns the number of frames received.
func (c *Collector) FramesIn() int64 {
	if c == nil {
		return 0
	}
	return c.framesIn.Load()
}

// FramesOut returns the number of frames sent.
func (c *Collector) FramesOut() int64 {
	if c == nil {
		return 0
	}
	return c.framesOut.Load()
}

// ── Rejections ───────────────────────────────────────────────────────

// BusyRejected records a connection turned away at capacity.
func (c *Collector) BusyRejected() {
	if c == nil {
		return
	}
	c.busyRejections.Add(1)
}

// BusyRejections returns how many connections were turned away.
func (c *Collector) BusyRejections() int64 {
	if c == nil {
		return 0
	}
	return c.busyRejections.Load()
}

// ForceClosed records n sessions closed after the shutdown grace period.
func (c *Collector) ForceClosed(n int) {
	if c == nil {
		return
	}
	c.forcedCloses.Add(int64(n))
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordFrameError counts a decode failure and stores the message.
func (c *Collector) RecordFrameError(msg string) {
	if c == nil {
		return
	}
	c.frameErrors.Add(1)
	c.recordLast(msg)
}

// RecordError counts a session that ended on an I/O failure.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.sessionFailures.Add(1)
	c.recordLast(msg)
}

// ErrorCount returns frame errors plus session failures.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.frameErrors.Load() + c.sessionFailures.Load()
}

func (c *Collector) recordLast(msg string) {
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	FramesIn         int64  `json:"frames_in"`
	FramesOut        int64  `json:"frames_out"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	FrameErrors      int64  `json:"frame_errors"`
	SessionFailures  int64  `json:"session_failures"`
	BusyRejections   int64  `json:"busy_rejections"`
	ForcedCloses     int64  `json:"forced_closes"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:  c.sessionsActive.Load(),
		SessionsTotal:   c.sessionsTotal.Load(),
		FramesIn:        c.framesIn.Load(),
		FramesOut:       c.framesOut.Load(),
		BytesIn:         c.bytesIn.Load(),
		BytesOut:        c.bytesOut.Load(),
		FrameErrors:     c.frameErrors.Load(),
		SessionFailures: c.sessionFailures.Load(),
		BusyRejections:  c.busyRejections.Load(),
		ForcedCloses:    c.forcedCloses.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
