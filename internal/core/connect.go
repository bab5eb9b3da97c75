package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"supportd/internal/client"
	ncerr "supportd/internal/errors"
	"supportd/internal/retry"
	"supportd/internal/transport"
	"supportd/util"
)

// ConnectMode dials the server and replays a conversation, printing
// the transcript.
type ConnectMode struct {
	Dialer  transport.Dialer
	Address string
	Options client.Options
	Logger  *util.Logger

	// Retries re-attempts the connect and handshake when the server is
	// busy or unreachable.  0 tries once.
	Retries int
	Backoff *retry.Backoff

	Script string // path, or "" / "-" for Stdin
	Demo   bool
	Pause  time.Duration
	Prompt string

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run connects, runs the conversation, and releases the transport.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	log := m.Logger
	if log == nil {
		log = util.NewLogger(0)
	}

	in, closeIn, err := m.input()
	if err != nil {
		return err
	}
	defer closeIn()

	c, err := m.connect(ctx, log)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	defer c.Close()

	cv := &client.Conversation{
		Client: c,
		Out:    m.stdout(),
		Pause:  m.Pause,
		Prompt: m.Prompt,
	}
	return cv.Run(ctx, in)
}

func (m *ConnectMode) input() (io.Reader, func(), error) {
	switch {
	case m.Demo:
		return client.DemoReader(), func() {}, nil
	case m.Script == "" || m.Script == "-":
		return m.stdin(), func() {}, nil
	}
	f, err := os.Open(m.Script)
	if err != nil {
		return nil, nil, fmt.Errorf("script: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func (m *ConnectMode) connect(ctx context.Context, log *util.Logger) (*client.Client, error) {
	opts := m.Options
	opts.Logger = log

	if m.Retries <= 0 {
		return client.Connect(ctx, m.Dialer, m.Address, opts)
	}

	b := m.Backoff
	if b == nil {
		b = retry.DefaultBackoff()
	}
	policy := *b
	policy.MaxAttempts = m.Retries + 1
	policy.Retryable = ncerr.IsRetryable
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("attempt %d: %v; retrying in %v", attempt, err, wait.Round(time.Millisecond))
	}

	var c *client.Client
	err := policy.Do(ctx, func(int) error {
		var err error
		c, err = client.Connect(ctx, m.Dialer, m.Address, opts)
		return err
	})
	return c, err
}
