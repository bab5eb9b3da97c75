// Package errors provides domain-specific error types for supportd.
//
// Frame- and connection-level failures are expressed as sentinel kinds
// so the session handler can name the reason a session ended, while
// NetworkError, SSHError and ConfigError carry structured context for
// diagnostics at the edges (listener, dialer, CLI).
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrConnectionReset  = errors.New("connection reset by peer")
	ErrWriteFailed      = errors.New("write failed")
	ErrServerBusy       = errors.New("server busy")
	ErrBindFailed       = errors.New("bind failed")
	ErrNotConnected     = errors.New("not connected")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrHostKeyMismatch  = errors.New("host key mismatch")
	ErrDuplicateSession = errors.New("session already registered")
)

// Kind names used in frame_error / session_closed events.
const (
	KindInvalidFrame    = "InvalidFrame"
	KindFrameTooLarge   = "FrameTooLarge"
	KindConnectionReset = "ConnectionReset"
	KindWriteFailed     = "WriteFailed"
	KindServerBusy      = "ServerBusy"
	KindBindFailed      = "BindFailed"
	KindUnknown         = "Unknown"
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "listen", "accept", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// BindFailed wraps a listen error so that both ErrBindFailed and the
// underlying cause match with Is.
func BindFailed(addr string, err error) *NetworkError {
	return &NetworkError{
		Op:   "listen",
		Addr: addr,
		Err:  fmt.Errorf("%w: %w", ErrBindFailed, err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// Kind maps err to one of the Kind* names.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFrame):
		return KindInvalidFrame
	case errors.Is(err, ErrFrameTooLarge):
		return KindFrameTooLarge
	case errors.Is(err, ErrWriteFailed):
		return KindWriteFailed
	case errors.Is(err, ErrServerBusy):
		return KindServerBusy
	case errors.Is(err, ErrBindFailed):
		return KindBindFailed
	case IsReset(err):
		return KindConnectionReset
	default:
		return KindUnknown
	}
}

// IsFrameError reports whether err is a decode-side protocol violation.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrInvalidFrame) || errors.Is(err, ErrFrameTooLarge)
}

// IsReset reports whether the peer closed the connection abruptly.
func IsReset(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConnectionReset) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsClosed returns true for errors that are expected during shutdown.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrServerBusy) {
		return true
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use supportd/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
