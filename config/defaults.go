package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so CLI flags, environment loading and
// tests agree on them.

const (
	DefaultHost = "localhost"
	DefaultPort = 8888

	// DefaultMaxSessions is the concurrent session cap.
	DefaultMaxSessions = 2

	// DefaultBacklog is reported only; the kernel sizes the accept
	// queue from net.core.somaxconn.
	DefaultBacklog = 5

	DefaultBusyPolicy      = "reject"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxFrame        = 64 * 1024

	// DefaultDemoPause matches the pacing of the demo conversation.
	DefaultDemoPause = 4 * time.Second

	DefaultConnTimeout = 10 * time.Second
	DefaultSSHPort     = 22
	DefaultEvents      = "text"
)

// Default returns a Config populated with every default.
func Default() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		MaxSessions:     DefaultMaxSessions,
		Backlog:         DefaultBacklog,
		BusyPolicy:      DefaultBusyPolicy,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxFrame:        DefaultMaxFrame,
		Timeout:         DefaultConnTimeout,
		Events:          DefaultEvents,
		Verbose:         1,
	}
}
