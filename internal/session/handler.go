package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ncerr "supportd/internal/errors"
	"supportd/internal/events"
	"supportd/internal/frame"
	"supportd/internal/metrics"
	"supportd/internal/protocol"
	"supportd/internal/registry"
	"supportd/util"
)

// Handler drives sessions through
// Greeting → AwaitingRequest → Processing → … → Closed.
// One Handler is shared by every session of a server; all per-session
// state lives on the Session.
type Handler struct {
	Registry    *registry.Registry
	Responder   Responder
	Events      events.Sink
	Metrics     *metrics.Collector
	Logger      *util.Logger
	Welcome     string
	MaxFrame    int
	IdleTimeout time.Duration
}

func (h *Handler) logger() *util.Logger {
	if h.Logger == nil {
		return util.NewLogger(0)
	}
	return h.Logger
}

func (h *Handler) responder() Responder {
	if h.Responder == nil {
		return DefaultRules()
	}
	return h.Responder
}

func (h *Handler) emit(ev events.Event) {
	if h.Events == nil {
		return
	}
	ev.Time = time.Now()
	h.Events.Emit(ev)
}

// Serve owns sess.Conn until it returns; the connection is always
// closed on return.  The session is registered before the welcome is
// sent and deregistered on every exit path, after which exactly one
// session_closed event is emitted.
//
// The returned error is nil for orderly endings (client exit, peer
// close, idle timeout, shutdown).
func (h *Handler) Serve(ctx context.Context, sess *Session) (err error) {
	log := h.logger().Named("session " + shortID(sess.ID))

	signal, err := h.Registry.Register(sess.Info(), sess.forceClose)
	if err != nil {
		sess.Conn.Close() //nolint:errcheck
		sess.finish(ReasonConnectionReset)
		log.Error("register: %v", err)
		return err
	}

	reason := ReasonPanic
	defer func() {
		if p := recover(); p != nil {
			reason = ReasonPanic
			err = fmt.Errorf("session %s panicked: %v", sess.ID, p)
			log.Error("%v", err)
		}
		sess.Conn.Close() //nolint:errcheck
		h.Registry.Deregister(sess.ID)
		sess.finish(reason)
		h.Metrics.SessionClosed()
		if err != nil && reason != ReasonFrameError {
			h.Metrics.RecordError(err.Error())
		}
		h.emit(events.Event{
			Type:      events.SessionClosed,
			SessionID: sess.ID,
			Remote:    sess.RemoteAddr,
			Reason:    string(reason),
		})
		log.Verbose("closed (%s)", reason)
	}()

	h.Metrics.SessionOpened()
	h.emit(events.Event{Type: events.SessionOpened, SessionID: sess.ID, Remote: sess.RemoteAddr})
	log.Verbose("opened from %s", sess.RemoteAddr)

	stop := watch(ctx, sess, signal)
	defer stop()

	reason, err = h.converse(ctx, sess, log)
	return err
}

// watch turns a close signal or context cancellation into an
// interrupted read.
func watch(ctx context.Context, sess *Session, signal <-chan struct{}) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-signal:
			sess.interrupt()
		case <-ctx.Done():
			sess.interrupt()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (h *Handler) converse(ctx context.Context, sess *Session, log *util.Logger) (Reason, error) {
	fr := frame.NewReader(sess.Conn, h.MaxFrame)
	fw := frame.NewWriter(sess.Conn)

	sess.setState(Greeting)
	welcome := h.Welcome
	if welcome == "" {
		welcome = protocol.DefaultWelcome
	}
	if err := h.send(fw, welcome); err != nil {
		return h.writeFailure(sess, err)
	}

	for {
		sess.setState(AwaitingRequest)
		if !sess.armRead(h.IdleTimeout) {
			return ReasonShutdown, nil
		}

		msg, err := fr.ReadMessage()
		if err != nil {
			return h.readFailure(sess, err, log)
		}
		h.Metrics.FrameReceived(msg.Len() + 1)
		log.Debug("request %q", msg.Payload())

		if protocol.IsSentinel(msg.Payload()) {
			return ReasonClientExit, nil
		}

		sess.setState(Processing)
		reply := h.responder().Respond(ctx, msg.Payload())
		if err := h.send(fw, reply); err != nil {
			return h.writeFailure(sess, err)
		}
	}
}

// send writes reply as exactly one frame.  Replies are sanitised rather
// than rejected so a responder can never break framing.
func (h *Handler) send(fw *frame.Writer, reply string) error {
	reply = strings.ToValidUTF8(strings.ReplaceAll(reply, "\n", " "), "�")
	n, err := fw.WriteMessage(frame.MustMessage(reply))
	if err != nil {
		return err
	}
	h.Metrics.FrameSent(n)
	return nil
}

func (h *Handler) writeFailure(sess *Session, err error) (Reason, error) {
	if sess.forced.Load() {
		return ReasonForced, nil
	}
	return ReasonWriteFailed, err
}

func (h *Handler) readFailure(sess *Session, err error, log *util.Logger) (Reason, error) {
	switch {
	case sess.forced.Load():
		return ReasonForced, nil
	case ncerr.IsFrameError(err):
		kind := ncerr.Kind(err)
		h.Metrics.RecordFrameError(err.Error())
		h.emit(events.Event{
			Type:      events.FrameError,
			SessionID: sess.ID,
			Remote:    sess.RemoteAddr,
			Kind:      kind,
		})
		log.Warn("frame error: %v", err)
		return ReasonFrameError, err
	case ncerr.IsTimeout(err):
		if sess.isClosing() {
			return ReasonShutdown, nil
		}
		return ReasonIdleTimeout, nil
	case errors.Is(err, io.EOF):
		return ReasonPeerClosed, nil
	case ncerr.IsReset(err):
		return ReasonConnectionReset, fmt.Errorf("%w: %w", ncerr.ErrConnectionReset, err)
	case ncerr.IsClosed(err):
		return ReasonPeerClosed, nil
	default:
		return ReasonConnectionReset, fmt.Errorf("read: %w", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
