package core

import (
	"io"
	"os"

	"golang.org/x/term"

	"supportd/config"
	"supportd/internal/client"
	"supportd/internal/events"
	"supportd/internal/transport"
	"supportd/tunnel"
	"supportd/util"
)

// Build constructs the Mode described by cfg.  cfg is expected to have
// passed Validate.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Listen {
		return buildServe(cfg, logger, os.Stderr)
	}
	return buildConnect(cfg, logger)
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger, eventOut io.Writer) (Mode, error) {
	policy, err := ParseBusyPolicy(cfg.BusyPolicy)
	if err != nil {
		return nil, err
	}

	return &ServeMode{
		Address: cfg.Addr(),
		Config: ServerConfig{
			Backlog:         cfg.Backlog,
			MaxSessions:     cfg.MaxSessions,
			Policy:          policy,
			AcceptTimeout:   cfg.AcceptTimeout,
			IdleTimeout:     cfg.IdleTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
			MaxFrameSize:    cfg.MaxFrame,
			Welcome:         cfg.Welcome,
			Events:          buildSink(cfg.Events, eventOut),
		},
		Logger: logger,
		Stats:  cfg.Stats,
	}, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger) (Mode, error) {
	m := &ConnectMode{
		Dialer:  buildDialer(cfg, logger),
		Address: cfg.Addr(),
		Options: client.Options{
			MaxFrameSize: cfg.MaxFrame,
			Timeout:      cfg.Timeout,
		},
		Logger:  logger,
		Retries: cfg.Retries,
		Script:  cfg.Script,
		Demo:    cfg.Demo,
		Pause:   cfg.Pause,
	}
	if m.Demo && m.Pause == 0 {
		m.Pause = config.DefaultDemoPause
	}
	if !m.Demo && (m.Script == "" || m.Script == "-") && term.IsTerminal(int(os.Stdin.Fd())) {
		m.Prompt = "> "
	}
	return m, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}

// buildSink maps --events onto an event sink.
func buildSink(format string, w io.Writer) events.Sink {
	switch format {
	case "off":
		return events.Discard
	case "json":
		return events.NewLogrusSink(w, true)
	default:
		return events.NewLogrusSink(w, false)
	}
}
