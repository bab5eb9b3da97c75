package core

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	ncerr "supportd/internal/errors"
	"supportd/internal/events"
	"supportd/internal/frame"
	"supportd/internal/metrics"
	"supportd/internal/protocol"
	"supportd/internal/registry"
	"supportd/internal/session"
	"supportd/util"
)

// BusyPolicy decides what happens to a connection that arrives while
// every session slot is taken.
type BusyPolicy int

const (
	// PolicyReject accepts the connection, sends the busy notice and
	// closes it straight away.
	PolicyReject BusyPolicy = iota
	// PolicyWait stops accepting until a slot frees up, for at most
	// AcceptTimeout, then behaves like PolicyReject.
	PolicyWait
)

func (p BusyPolicy) String() string {
	if p == PolicyWait {
		return "wait"
	}
	return "reject"
}

// ParseBusyPolicy accepts "reject" or "wait".
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch s {
	case "", "reject":
		return PolicyReject, nil
	case "wait":
		return PolicyWait, nil
	default:
		return PolicyReject, fmt.Errorf("unknown busy policy %q (want reject or wait)", s)
	}
}

// ServerConfig tunes an Acceptor and its sessions.  Zero values pick
// defaults.
type ServerConfig struct {
	Backlog         int           // informational: the kernel owns the accept queue
	MaxSessions     int           // simultaneous sessions (default 2)
	Policy          BusyPolicy    // behaviour at capacity
	AcceptTimeout   time.Duration // PolicyWait bound; 0 waits until shutdown
	IdleTimeout     time.Duration // per-request read bound; 0 disables
	ShutdownTimeout time.Duration // grace used when the Start context ends
	MaxFrameSize    int           // default frame.DefaultMaxFrameSize
	Welcome         string        // default protocol.DefaultWelcome

	Responder session.Responder
	Events    events.Sink
	Metrics   *metrics.Collector
	Logger    *util.Logger
}

const (
	defaultMaxSessions     = 2
	defaultShutdownTimeout = 5 * time.Second
	busyWriteTimeout       = time.Second
)

func (c ServerConfig) withDefaults() ServerConfig {
	if c.MaxSessions <= 0 {
		c.MaxSessions = defaultMaxSessions
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = frame.DefaultMaxFrameSize
	}
	if c.Welcome == "" {
		c.Welcome = protocol.DefaultWelcome
	}
	if c.Responder == nil {
		c.Responder = session.DefaultRules()
	}
	if c.Events == nil {
		c.Events = events.Discard
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}
	if c.Logger == nil {
		c.Logger = util.NewLogger(0)
	}
	return c
}

// Server is the handle returned by Start.  It owns the listening socket
// and the accept loop; each session runs on its own goroutine and only
// shares the registry with the server.
type Server struct {
	cfg     ServerConfig
	ln      net.Listener
	reg     *registry.Registry
	handler *session.Handler
	log     *util.Logger

	slots chan struct{} // one token per live session

	sessCtx    context.Context
	sessCancel context.CancelFunc
	sessions   sync.WaitGroup

	stopping chan struct{}
	loopDone chan struct{}
	done     chan struct{}
	once     sync.Once
	forced   int
}

// Start binds addr and begins accepting.  A bind failure is returned
// as a NetworkError matching ErrBindFailed.  When ctx ends the server
// shuts itself down with cfg.ShutdownTimeout.
func Start(ctx context.Context, addr string, cfg ServerConfig) (*Server, error) {
	cfg = cfg.withDefaults()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ncerr.BindFailed(addr, err)
	}

	log := cfg.Logger.Named("acceptor")
	reg := registry.New()
	sessCtx, sessCancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Server{
		cfg: cfg,
		ln:  ln,
		reg: reg,
		handler: &session.Handler{
			Registry:    reg,
			Responder:   cfg.Responder,
			Events:      cfg.Events,
			Metrics:     cfg.Metrics,
			Logger:      cfg.Logger,
			Welcome:     cfg.Welcome,
			MaxFrame:    cfg.MaxFrameSize,
			IdleTimeout: cfg.IdleTimeout,
		},
		log:        log,
		slots:      make(chan struct{}, cfg.MaxSessions),
		sessCtx:    sessCtx,
		sessCancel: sessCancel,
		stopping:   make(chan struct{}),
		loopDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	log.Verbose("listening on %s (max %d sessions, %s when busy, backlog %d)",
		ln.Addr(), cfg.MaxSessions, cfg.Policy, cfg.Backlog)
	s.emit(events.Event{Type: events.ServerStarted, Remote: ln.Addr().String()})

	go s.acceptLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown(cfg.ShutdownTimeout)
		case <-s.done:
		}
	}()
	return s, nil
}

// Addr is the bound listening address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Sessions lists the live sessions, oldest first.
func (s *Server) Sessions() []registry.Info { return s.reg.List() }

// Stats returns the server's metrics snapshot.
func (s *Server) Stats() metrics.Snapshot { return s.cfg.Metrics.Snapshot() }

// Metrics exposes the collector for JSON export.
func (s *Server) Metrics() *metrics.Collector { return s.cfg.Metrics }

// Done is closed once Shutdown has finished.
func (s *Server) Done() <-chan struct{} { return s.done }

func (s *Server) emit(ev events.Event) {
	ev.Time = time.Now()
	s.cfg.Events.Emit(ev)
}

// ── accept loop ──────────────────────────────────────────────────────

func (s *Server) acceptLoop() {
	defer close(s.loopDone)

	var tempDelay time.Duration
	for {
		held := false
		if s.cfg.Policy == PolicyWait {
			var ok bool
			held, ok = s.waitSlot()
			if !ok {
				return
			}
		}

		conn, err := s.ln.Accept()
		if err != nil {
			if held {
				<-s.slots
			}
			select {
			case <-s.stopping:
				return
			default:
			}
			if ncerr.IsRetryable(err) {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.log.Warn("accept: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			s.log.Error("accept: %v", err)
			return
		}
		tempDelay = 0

		if !held && !s.tryAcquire() {
			s.reject(conn)
			continue
		}

		s.sessions.Add(1)
		go s.serve(conn)
	}
}

// waitSlot blocks for a free slot under PolicyWait.  held reports
// whether a slot was taken; ok is false when the server is stopping.
func (s *Server) waitSlot() (held, ok bool) {
	var timeout <-chan time.Time
	if s.cfg.AcceptTimeout > 0 {
		t := time.NewTimer(s.cfg.AcceptTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case s.slots <- struct{}{}:
		return true, true
	case <-timeout:
		s.log.Debug("no slot after %v; next connection will be rejected", s.cfg.AcceptTimeout)
		return false, true
	case <-s.stopping:
		return false, false
	}
}

func (s *Server) tryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// reject sends the busy notice on a connection that will not get a
// session, then closes it.
func (s *Server) reject(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	conn.SetWriteDeadline(time.Now().Add(busyWriteTimeout)) //nolint:errcheck
	if _, err := frame.NewWriter(conn).WriteText(protocol.BusyNotice); err != nil {
		s.log.Debug("busy notice to %s: %v", remote, err)
	}
	conn.Close() //nolint:errcheck

	s.cfg.Metrics.BusyRejected()
	s.emit(events.Event{Type: events.ServerBusy, Remote: remote, Kind: ncerr.KindServerBusy})
	s.log.Info("rejected %s: %d sessions active", remote, s.cfg.MaxSessions)
}

func (s *Server) serve(conn net.Conn) {
	defer s.sessions.Done()
	defer func() { <-s.slots }()

	if err := s.handler.Serve(s.sessCtx, session.New(conn)); err != nil {
		s.log.Verbose("session from %s ended: %v", conn.RemoteAddr(), err)
	}
}

// ── shutdown ─────────────────────────────────────────────────────────

// Shutdown stops accepting immediately, asks every session to close,
// waits up to timeout for them, then force-closes the rest.  It returns
// the number of sessions that had to be force-closed.  Calling it again
// returns the first result.
func (s *Server) Shutdown(timeout time.Duration) int {
	s.once.Do(func() {
		close(s.stopping)
		s.ln.Close() //nolint:errcheck
		<-s.loopDone

		signalled := s.reg.BroadcastCloseSignal()
		s.log.Verbose("shutdown: signalled %d sessions, waiting up to %v", signalled, timeout)

		if !waitTimeout(&s.sessions, timeout) {
			s.forced = s.reg.ForceCloseAll()
			s.log.Warn("shutdown: force-closing %d sessions", s.forced)
			s.sessCancel()
			s.sessions.Wait()
		}
		s.sessCancel()

		s.cfg.Metrics.ForceClosed(s.forced)
		s.emit(events.Event{Type: events.ServerStopped, Count: s.forced})
		close(s.done)
	})
	<-s.done
	return s.forced
}

// waitTimeout reports whether wg finished within d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
