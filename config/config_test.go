package config

import (
	"testing"
	"time"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "agent@bastion.example.com:2222", "agent", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestApplyTunnelSpec(t *testing.T) {
	cfg := Default()
	cfg.TunnelSpec = "agent@bastion:2200"
	if err := cfg.ApplyTunnelSpec(); err != nil {
		t.Fatal(err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "agent" || cfg.TunnelHost != "bastion" || cfg.TunnelPort != 2200 {
		t.Errorf("tunnel fields = %+v", cfg)
	}

	none := Default()
	if err := none.ApplyTunnelSpec(); err != nil || none.TunnelEnabled {
		t.Errorf("empty spec: err=%v enabled=%v", err, none.TunnelEnabled)
	}
}

// ── ParsePort ────────────────────────────────────────────────────────

func TestParsePort(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"8888", 8888, false},
		{"1", 1, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"70000", 0, true},
		{"abc", 0, true},
		{"-1", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePort(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

// ── Config.Validate ──────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	server := func(mod func(*Config)) Config {
		c := Default()
		c.Listen = true
		mod(c)
		return *c
	}
	clientCfg := func(mod func(*Config)) Config {
		c := Default()
		mod(c)
		return *c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults client", clientCfg(func(*Config) {}), false},
		{"defaults server", server(func(*Config) {}), false},
		{"wait policy", server(func(c *Config) { c.BusyPolicy = "wait"; c.AcceptTimeout = time.Second }), false},
		{"no port", clientCfg(func(c *Config) { c.Port = 0 }), true},
		{"port too high", server(func(c *Config) { c.Port = 70000 }), true},
		{"no host", clientCfg(func(c *Config) { c.Host = "" }), true},
		{"zero frame", server(func(c *Config) { c.MaxFrame = 0 }), true},
		{"bad events", clientCfg(func(c *Config) { c.Events = "xml" }), true},
		{"zero sessions", server(func(c *Config) { c.MaxSessions = 0 }), true},
		{"negative backlog", server(func(c *Config) { c.Backlog = -1 }), true},
		{"bad policy", server(func(c *Config) { c.BusyPolicy = "queue" }), true},
		{"negative idle", server(func(c *Config) { c.IdleTimeout = -time.Second }), true},
		{"zero shutdown", server(func(c *Config) { c.ShutdownTimeout = 0 }), true},
		{"server through tunnel", server(func(c *Config) { c.TunnelEnabled = true; c.TunnelHost = "gw" }), true},
		{"server with demo", server(func(c *Config) { c.Demo = true }), true},
		{"demo and script", clientCfg(func(c *Config) { c.Demo = true; c.Script = "x.txt" }), true},
		{"negative retries", clientCfg(func(c *Config) { c.Retries = -1 }), true},
		{"negative pause", clientCfg(func(c *Config) { c.Pause = -time.Second }), true},
		{"tunnel without user", clientCfg(func(c *Config) { c.TunnelEnabled = true; c.TunnelHost = "gw" }), true},
		{"valid tunnel", clientCfg(func(c *Config) {
			c.TunnelEnabled = true
			c.TunnelHost = "gw"
			c.TunnelUser = "agent"
		}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Addr() != "localhost:8888" {
		t.Errorf("Addr() = %q", c.Addr())
	}
	if c.MaxSessions != 2 || c.MaxFrame != 64*1024 || c.BusyPolicy != "reject" {
		t.Errorf("unexpected defaults: %+v", c)
	}
}
