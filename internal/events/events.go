// Package events defines the structured observability events emitted
// by the server core and the sinks that collect them.
//
// The core never formats or persists these itself; it hands each Event
// to a Sink supplied by the caller.  LogrusSink renders them as
// structured log entries, Recorder keeps them in memory for tests.
package events

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Type names an event.
type Type string

const (
	SessionOpened Type = "session_opened"
	SessionClosed Type = "session_closed"
	FrameError    Type = "frame_error"
	ServerBusy    Type = "server_busy"
	ServerStarted Type = "server_started"
	ServerStopped Type = "server_stopped"
)

// Event is a single observation.  Fields that do not apply to a type
// are left empty.
type Event struct {
	Type      Type
	Time      time.Time
	SessionID string
	Remote    string
	Reason    string // session_closed
	Kind      string // frame_error
	Count     int    // server_stopped: sessions force-closed
}

// Sink receives events.  Implementations must be safe for concurrent
// use; Emit is called from every session goroutine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ev Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(ev)
			}
		}
	})
}

// ── logrus ───────────────────────────────────────────────────────────

// LogrusSink writes each event as one logrus entry whose message is the
// event type and whose fields carry the rest.
type LogrusSink struct {
	log *logrus.Logger
}

// NewLogrusSink returns a sink writing to w.  With json=true entries are
// rendered by logrus.JSONFormatter, otherwise by a plain TextFormatter.
func NewLogrusSink(w io.Writer, json bool) *LogrusSink {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	if json {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}
	return &LogrusSink{log: l}
}

// Logger exposes the underlying logrus logger (for hooks/levels).
func (s *LogrusSink) Logger() *logrus.Logger { return s.log }

// Emit implements Sink.
func (s *LogrusSink) Emit(ev Event) {
	fields := logrus.Fields{"event": string(ev.Type)}
	if ev.SessionID != "" {
		fields["session"] = ev.SessionID
	}
	if ev.Remote != "" {
		fields["remote"] = ev.Remote
	}
	if ev.Reason != "" {
		fields["reason"] = ev.Reason
	}
	if ev.Kind != "" {
		fields["kind"] = ev.Kind
	}
	if ev.Type == ServerStopped {
		fields["force_closed"] = ev.Count
	}

	entry := s.log.WithFields(fields)
	if !ev.Time.IsZero() {
		entry = entry.WithTime(ev.Time)
	}

	switch ev.Type {
	case FrameError, ServerBusy:
		entry.Warn(string(ev.Type))
	default:
		entry.Info(string(ev.Type))
	}
}

// ── in-memory ────────────────────────────────────────────────────────

// Recorder stores every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Emit implements Sink.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the recorded events of type t.
func (r *Recorder) Filter(t Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// WaitFor blocks until at least n events of type t have been recorded
// or timeout elapses.  It reports whether the condition was met.
func (r *Recorder) WaitFor(t Type, n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if len(r.Filter(t)) >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return len(r.Filter(t)) >= n
		}
	}
}
