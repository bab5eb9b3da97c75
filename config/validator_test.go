package config

import (
	"errors"
	"strings"
	"testing"

	ncerr "supportd/internal/errors"
)

// TestValidate_ErrorMessages verifies that Validate names the flag and
// offers a hint where one helps.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name      string
		mod       func(*Config)
		wantField string
		wantSub   string
	}{
		{"bad policy", func(c *Config) { c.Listen = true; c.BusyPolicy = "queue" }, "busy-policy", "hint: use reject or wait"},
		{"no host", func(c *Config) { c.Host = "" }, "host", "hint:"},
		{"bad events", func(c *Config) { c.Events = "xml" }, "events", "--events=xml"},
		{"server demo", func(c *Config) { c.Listen = true; c.Demo = true }, "script", "drop -l"},
		{"tunnel no user", func(c *Config) {
			c.TunnelSpec = "gw"
			c.TunnelEnabled = true
			c.TunnelHost = "gw"
		}, "tunnel", "user@host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *ncerr.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("want *ConfigError, got %T", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ce.Field, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestParseTunnelSpec_EdgeCases covers additional tunnel specs.
func TestParseTunnelSpec_EdgeCases(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"user@host.with.dots:22", false},
		{"user@host-with-dashes", false},
		{"host:0", true},     // port 0 out of range
		{"host:65536", true}, // port too high
		{"user@", false},     // regex treats "user@" as hostname
		{"", true},
		{":22", true}, // no host before colon
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, _, _, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTunnelSpec(%q) err = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestApplyTunnelSpec_Invalid(t *testing.T) {
	cfg := Default()
	cfg.TunnelSpec = "agent@gw:99999"
	err := cfg.ApplyTunnelSpec()
	var ce *ncerr.ConfigError
	if !errors.As(err, &ce) || ce.Field != "tunnel" {
		t.Fatalf("got %v", err)
	}
	if cfg.TunnelEnabled {
		t.Error("invalid spec should not enable the tunnel")
	}
}
