// Package config defines the runtime configuration for supportd, the
// rules that keep it consistent, and helpers for parsing ports and
// tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "supportd/internal/errors"
	"supportd/util"
)

// Config holds every tuneable for one supportd process, server or
// client.
type Config struct {
	// ── Endpoint ─────────────────────────────────────────────────────
	Listen bool   // -l: run the server
	Host   string // bind host (server) or server host (client)
	Port   int

	// ── Server ───────────────────────────────────────────────────────
	MaxSessions     int
	Backlog         int
	BusyPolicy      string // "reject" or "wait"
	AcceptTimeout   time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxFrame        int
	Welcome         string

	// ── Client ───────────────────────────────────────────────────────
	Script  string // -f: file of request lines, "-" for stdin
	Demo    bool
	Pause   time.Duration
	Retries int
	Timeout time.Duration // dial and per-exchange bound

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Events  string // "text", "json" or "off"
	Stats   bool
	DryRun  bool
}

// Addr is Host:Port, with IPv6 hosts bracketed.
func (c *Config) Addr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "agent@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "example: -T agent@bastion.example.com:2222",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are *errors.ConfigError values naming the offending flag.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.Port,
			Message: "port must be in 1-65535"}
	}
	if c.Host == "" {
		return &ncerr.ConfigError{Field: "host", Message: "host is required",
			Hint: "pass it as the first argument, e.g. supportd localhost 8888"}
	}
	if c.MaxFrame < 1 {
		return &ncerr.ConfigError{Field: "max-frame", Value: c.MaxFrame,
			Message: "frame size bound must be positive"}
	}
	if c.Timeout < 0 {
		return &ncerr.ConfigError{Field: "timeout", Value: c.Timeout,
			Message: "timeout cannot be negative"}
	}

	switch c.Events {
	case "text", "json", "off":
	default:
		return &ncerr.ConfigError{Field: "events", Value: c.Events,
			Message: "unknown event format", Hint: "use text, json or off"}
	}

	if c.Listen {
		return c.validateServer()
	}
	return c.validateClient()
}

func (c *Config) validateServer() error {
	if c.MaxSessions < 1 {
		return &ncerr.ConfigError{Field: "max-sessions", Value: c.MaxSessions,
			Message: "at least one session must be allowed"}
	}
	if c.Backlog < 0 {
		return &ncerr.ConfigError{Field: "backlog", Value: c.Backlog,
			Message: "backlog cannot be negative"}
	}
	if c.BusyPolicy != "reject" && c.BusyPolicy != "wait" {
		return &ncerr.ConfigError{Field: "busy-policy", Value: c.BusyPolicy,
			Message: "unknown policy", Hint: "use reject or wait"}
	}
	if c.AcceptTimeout < 0 || c.IdleTimeout < 0 {
		return &ncerr.ConfigError{Field: "idle-timeout",
			Message: "timeouts cannot be negative"}
	}
	if c.ShutdownTimeout <= 0 {
		return &ncerr.ConfigError{Field: "shutdown-timeout", Value: c.ShutdownTimeout,
			Message: "shutdown grace period must be positive"}
	}
	if c.TunnelEnabled {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec,
			Message: "the server cannot listen through an SSH tunnel",
			Hint:    "drop -T, or run the client with -T instead"}
	}
	if c.Script != "" || c.Demo {
		return &ncerr.ConfigError{Field: "script",
			Message: "--script and --demo apply to the client only",
			Hint:    "drop -l to run as a client"}
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Script != "" && c.Demo {
		return &ncerr.ConfigError{Field: "demo",
			Message: "--demo and --script are mutually exclusive"}
	}
	if c.Retries < 0 {
		return &ncerr.ConfigError{Field: "retries", Value: c.Retries,
			Message: "retries cannot be negative"}
	}
	if c.Pause < 0 {
		return &ncerr.ConfigError{Field: "pause", Value: c.Pause,
			Message: "pause cannot be negative"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec,
			Message: "tunnel host is required"}
	}
	if c.TunnelEnabled && c.TunnelUser == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec,
			Message: "tunnel user is required",
			Hint:    "use user@host, e.g. -T agent@bastion"}
	}
	return nil
}
