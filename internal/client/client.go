// Package client is the synchronous driver for the support protocol:
// one welcome on connect, then strict request/reply alternation until a
// sentinel is sent.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ncerr "supportd/internal/errors"
	"supportd/internal/frame"
	"supportd/internal/protocol"
	"supportd/internal/transport"
	"supportd/util"
)

// ErrClosed is returned by Send once the client has been closed, by
// the caller, by a sentinel or by a connection failure.
var ErrClosed = ncerr.New("client closed")

// Options tune a Client.  Zero values pick defaults.
type Options struct {
	MaxFrameSize int           // default frame.DefaultMaxFrameSize
	Timeout      time.Duration // per-exchange bound when ctx has no deadline; 0 waits forever
	Logger       *util.Logger
}

// Client is a connected handle.  Exchanges are serialised; Close may be
// called from any goroutine and interrupts a blocked Send.
type Client struct {
	conn    net.Conn
	fr      *frame.Reader
	fw      *frame.Writer
	opts    Options
	log     *util.Logger
	welcome string

	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Connect dials address and completes the handshake.  A server at
// capacity yields an error matching ErrServerBusy.
func Connect(ctx context.Context, d transport.Dialer, address string, opts Options) (*Client, error) {
	conn, err := d.Dial(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return Attach(ctx, conn, opts)
}

// Attach runs the handshake on an established connection.  On error
// the connection is closed.
func Attach(ctx context.Context, conn net.Conn, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	c := &Client{
		conn: conn,
		fr:   frame.NewReader(conn, opts.MaxFrameSize),
		fw:   frame.NewWriter(conn),
		opts: opts,
		log:  opts.Logger.Named("client"),
	}

	stop := c.bound(ctx)
	msg, err := c.fr.ReadMessage()
	stop()
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("waiting for welcome: %w", c.readErr(ctx, err))
	}
	if protocol.IsBusy(msg.Payload()) {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("%w: %s", ncerr.ErrServerBusy, msg.Payload())
	}

	c.welcome = msg.Payload()
	c.log.Verbose("connected to %s", conn.RemoteAddr())
	return c, nil
}

// Welcome is the greeting received during the handshake.
func (c *Client) Welcome() string { return c.welcome }

// LocalAddr is the client side of the connection.
func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Send writes text as one frame and waits for exactly one reply.
//
// A sentinel ("exit", "bye") is written and the client is closed
// without waiting; Send then returns "", nil.  Any I/O failure also
// closes the client, since the request/reply pairing can no longer be
// trusted.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return "", ErrClosed
	}
	m, err := frame.NewMessage(text)
	if err != nil {
		return "", err
	}

	stop := c.bound(ctx)
	defer stop()

	if _, err := c.fw.WriteMessage(m); err != nil {
		c.Close() //nolint:errcheck
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	c.log.Debug("sent %q", text)

	if protocol.IsSentinel(text) {
		return "", c.Close()
	}

	reply, err := c.fr.ReadMessage()
	if err != nil {
		err = c.readErr(ctx, err)
		c.Close() //nolint:errcheck
		return "", err
	}
	c.log.Debug("received %q", reply.Payload())
	return reply.Payload(), nil
}

// Close closes the connection.  It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// bound applies ctx's deadline (or Options.Timeout) to the connection
// and makes cancellation unblock pending I/O.  The returned func
// clears both.
func (c *Client) bound(ctx context.Context) (stop func()) {
	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	} else if c.opts.Timeout > 0 {
		deadline = time.Now().Add(c.opts.Timeout)
	}
	c.conn.SetDeadline(deadline) //nolint:errcheck

	stopCancel := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0)) //nolint:errcheck
	})
	return func() {
		stopCancel()
		c.conn.SetDeadline(time.Time{}) //nolint:errcheck
	}
}

func (c *Client) readErr(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case c.closed.Load() && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)):
		return ErrClosed
	case ncerr.IsTimeout(err):
		return fmt.Errorf("no reply from server: %w", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), ncerr.IsReset(err):
		return fmt.Errorf("%w: %w", ncerr.ErrConnectionReset, err)
	default:
		return err
	}
}
