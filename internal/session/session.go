// Package session implements the per-connection side of the support
// chat: the Session model, the ordered keyword rule table, and the
// Handler state machine that drives one session from greeting to close.
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"supportd/internal/registry"
)

// State is a session's position in the protocol.
type State int32

const (
	Greeting State = iota
	AwaitingRequest
	Processing
	Closed
)

func (s State) String() string {
	switch s {
	case Greeting:
		return "greeting"
	case AwaitingRequest:
		return "awaiting_request"
	case Processing:
		return "processing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reason explains why a session reached Closed.
type Reason string

const (
	ReasonClientExit      Reason = "client_exit"
	ReasonPeerClosed      Reason = "peer_closed"
	ReasonConnectionReset Reason = "connection_reset"
	ReasonFrameError      Reason = "frame_error"
	ReasonWriteFailed     Reason = "write_failed"
	ReasonIdleTimeout     Reason = "idle_timeout"
	ReasonShutdown        Reason = "shutdown"
	ReasonForced          Reason = "forced"
	ReasonPanic           Reason = "panic"
)

// Session is the server-side state for one client connection.  Only
// the Handler serving it changes its state; everything else may read.
type Session struct {
	ID         string
	Conn       net.Conn
	RemoteAddr string
	CreatedAt  time.Time

	state  atomic.Int32
	forced atomic.Bool

	mu      sync.Mutex
	closing bool
	reason  Reason
	done    chan struct{}
}

// New wraps an accepted connection in a fresh session.
func New(conn net.Conn) *Session {
	remote := ""
	if a := conn.RemoteAddr(); a != nil {
		remote = a.String()
	}
	return &Session{
		ID:         uuid.NewString(),
		Conn:       conn,
		RemoteAddr: remote,
		CreatedAt:  time.Now(),
		done:       make(chan struct{}),
	}
}

// Info is the registry view of the session.
func (s *Session) Info() registry.Info {
	return registry.Info{ID: s.ID, RemoteAddr: s.RemoteAddr, ConnectedSince: s.CreatedAt}
}

// State returns the current protocol state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Done is closed once the session has reached Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// CloseReason is empty until the session has closed.
func (s *Session) CloseReason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Session) finish(r Reason) {
	s.mu.Lock()
	s.reason = r
	s.mu.Unlock()
	s.setState(Closed)
	close(s.done)
}

// interrupt asks a blocked read to return.  The session notices the
// closing flag before its next wait for a request.
func (s *Session) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	s.Conn.SetReadDeadline(time.Now()) //nolint:errcheck
}

// armRead sets the deadline for the next request.  It returns false
// when a close signal has already been observed.
func (s *Session) armRead(idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	var deadline time.Time
	if idle > 0 {
		deadline = time.Now().Add(idle)
	}
	s.Conn.SetReadDeadline(deadline) //nolint:errcheck
	return true
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// forceClose is handed to the registry for the shutdown straggler path.
func (s *Session) forceClose() {
	s.forced.Store(true)
	s.Conn.Close() //nolint:errcheck
}
