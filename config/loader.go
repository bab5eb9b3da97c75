package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix starts every supported variable name.  Booleans accept
// "1", "true", "yes" (case-insensitive); durations accept Go syntax
// ("1500ms") or whole seconds.
const EnvPrefix = "SUPPORTD_"

// LoadFromEnv overlays environment variables onto cfg.  Unset, empty
// or unparsable values leave the field alone.  Call it before flag
// parsing so that flags win.
func LoadFromEnv(cfg *Config) {
	str("HOST", &cfg.Host)
	num("PORT", &cfg.Port)
	flag("LISTEN", &cfg.Listen)

	num("MAX_SESSIONS", &cfg.MaxSessions)
	num("BACKLOG", &cfg.Backlog)
	str("BUSY_POLICY", &cfg.BusyPolicy)
	dur("ACCEPT_TIMEOUT", &cfg.AcceptTimeout)
	dur("IDLE_TIMEOUT", &cfg.IdleTimeout)
	dur("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	num("MAX_FRAME", &cfg.MaxFrame)
	str("WELCOME", &cfg.Welcome)

	str("SCRIPT", &cfg.Script)
	dur("PAUSE", &cfg.Pause)
	num("RETRIES", &cfg.Retries)
	dur("TIMEOUT", &cfg.Timeout)

	str("TUNNEL", &cfg.TunnelSpec)
	str("SSH_KEY", &cfg.SSHKeyPath)
	flag("SSH_PASSWORD", &cfg.SSHPassword)
	flag("SSH_AGENT", &cfg.UseSSHAgent)
	flag("STRICT_HOSTKEY", &cfg.StrictHostKey)
	str("KNOWN_HOSTS", &cfg.KnownHostsPath)

	num("VERBOSE", &cfg.Verbose)
	str("EVENTS", &cfg.Events)
	flag("STATS", &cfg.Stats)
}

// ── helpers ──────────────────────────────────────────────────────────

func str(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func num(key string, dst *int) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		*dst = n
	}
}

func flag(key string, dst *bool) {
	switch strings.ToLower(os.Getenv(EnvPrefix + key)) {
	case "1", "true", "yes":
		*dst = true
	}
}

func dur(key string, dst *time.Duration) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		*dst = d
		return
	}
	if sec, err := strconv.Atoi(v); err == nil && sec >= 0 {
		*dst = time.Duration(sec) * time.Second
	}
}
