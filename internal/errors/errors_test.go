package errors

import (
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "example.com:8888", Err: io.EOF, Retryable: true},
			want: "dial example.com:8888: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "listen", Addr: ":8888", Err: fmt.Errorf("address in use")},
			want: "listen :8888: address in use",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBindFailed_MatchesBoth(t *testing.T) {
	cause := fmt.Errorf("address already in use")
	err := BindFailed("127.0.0.1:8888", cause)
	if !Is(err, ErrBindFailed) {
		t.Error("should match ErrBindFailed")
	}
	if !Is(err, cause) {
		t.Error("should match underlying cause")
	}
	if got := Kind(err); got != KindBindFailed {
		t.Errorf("Kind = %q, want %q", got, KindBindFailed)
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !Is(err, err.Err) {
		t.Error("should unwrap to inner error")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "max-sessions",
				Value:   0,
				Message: "must be at least 1",
				Hint:    "use -s 2 to allow two concurrent customers",
			},
			want: "config: --max-sessions=0: must be at least 1\n  hint: use -s 2 to allow two concurrent customers",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "port",
				Message: "required in listen mode",
			},
			want: "config: --port: required in listen mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid frame", fmt.Errorf("decode: %w", ErrInvalidFrame), KindInvalidFrame},
		{"too large", ErrFrameTooLarge, KindFrameTooLarge},
		{"write", fmt.Errorf("%w: broken", ErrWriteFailed), KindWriteFailed},
		{"busy", ErrServerBusy, KindServerBusy},
		{"econnreset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, KindConnectionReset},
		{"plain", fmt.Errorf("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFrameError(t *testing.T) {
	if !IsFrameError(ErrInvalidFrame) || !IsFrameError(ErrFrameTooLarge) {
		t.Error("frame sentinels should be frame errors")
	}
	if IsFrameError(ErrWriteFailed) {
		t.Error("write failure is not a frame error")
	}
}

func TestIsClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"net closed", fmt.Errorf("read: %w", net.ErrClosed), true},
		{"reset", syscall.ECONNRESET, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClosed(tt.err); got != tt.want {
				t.Errorf("IsClosed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fmt.Errorf("read: %w", os.ErrDeadlineExceeded)) {
		t.Error("deadline exceeded should be a timeout")
	}
	if IsTimeout(io.EOF) {
		t.Error("EOF is not a timeout")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", fmt.Errorf("connect: %w", ErrServerBusy), true},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: false}, false},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrInvalidFrame, ErrFrameTooLarge, ErrConnectionReset,
		ErrWriteFailed, ErrServerBusy, ErrBindFailed,
		ErrNotConnected, ErrAuthFailed, ErrHostKeyMismatch,
		ErrDuplicateSession,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
