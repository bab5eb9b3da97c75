// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"supportd/config"
	"supportd/internal/core"
	"supportd/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X supportd/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the server or the client.
func Execute(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("supportd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── endpoint ─────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Run the support server")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on or connect to")

	// ── server ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.MaxSessions, "max-sessions", "s", cfg.MaxSessions, "Concurrent sessions before new clients are turned away")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "Listen backlog (advisory; the kernel sizes the queue)")
	fs.StringVar(&cfg.BusyPolicy, "busy-policy", cfg.BusyPolicy, "At capacity: reject (send busy notice) or wait")
	fs.DurationVar(&cfg.AcceptTimeout, "accept-timeout", cfg.AcceptTimeout, "With --busy-policy=wait, how long to wait for a slot (0 = forever)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Close sessions idle this long (0 = never)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Grace period for sessions on shutdown")
	fs.IntVar(&cfg.MaxFrame, "max-frame", cfg.MaxFrame, "Largest accepted message in bytes")
	fs.StringVar(&cfg.Welcome, "welcome", cfg.Welcome, "Greeting sent to each client")

	// ── client ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.Script, "script", "f", cfg.Script, "Read requests from file (- for stdin)")
	fs.BoolVar(&cfg.Demo, "demo", cfg.Demo, "Play the built-in demo conversation")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Delay between requests")
	fs.IntVarP(&cfg.Retries, "retries", "r", cfg.Retries, "Retry a busy or unreachable server this many times")
	fs.DurationVarP(&cfg.Timeout, "timeout", "w", cfg.Timeout, "Dial and reply timeout")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the server through SSH: user@host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	fs.StringVar(&cfg.Events, "events", cfg.Events, "Server event log format: text, json or off")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print server metrics as JSON on exit")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "supportd %s\n", version)
		return nil
	}

	switch {
	case quiet:
		cfg.Verbose = 0
	case verbose > 0:
		cfg.Verbose = int(util.LogNormal) + verbose
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DryRun {
		printConfig(stdout, cfg)
		return nil
	}

	logger := util.NewLogger(cfg.Verbose)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	switch m := mode.(type) {
	case *core.ServeMode:
		m.Stdout = stdout
	case *core.ConnectMode:
		m.Stdout = stdout
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional accepts [host [port]] or host:port in both modes:
// the bind address for -l, the server address otherwise.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
	case 1:
		if host, port, err := util.SplitAddr(remaining[0]); err == nil {
			if port < 1 || port > 65535 {
				return fmt.Errorf("port %d out of range 1-65535", port)
			}
			cfg.Host, cfg.Port = host, port
			return nil
		}
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments: expected [host [port]]")
	}
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	if cfg.Listen {
		fmt.Fprintf(w, "mode:             server\n")
		fmt.Fprintf(w, "address:          %s\n", cfg.Addr())
		fmt.Fprintf(w, "max sessions:     %d (%s when busy)\n", cfg.MaxSessions, cfg.BusyPolicy)
		fmt.Fprintf(w, "backlog:          %d\n", cfg.Backlog)
		fmt.Fprintf(w, "idle timeout:     %v\n", cfg.IdleTimeout)
		fmt.Fprintf(w, "shutdown timeout: %v\n", cfg.ShutdownTimeout)
		fmt.Fprintf(w, "max frame:        %d bytes\n", cfg.MaxFrame)
		fmt.Fprintf(w, "events:           %s\n", cfg.Events)
		return
	}
	fmt.Fprintf(w, "mode:             client\n")
	fmt.Fprintf(w, "address:          %s\n", cfg.Addr())
	switch {
	case cfg.Demo:
		fmt.Fprintf(w, "input:            demo script\n")
	case cfg.Script != "" && cfg.Script != "-":
		fmt.Fprintf(w, "input:            %s\n", cfg.Script)
	default:
		fmt.Fprintf(w, "input:            stdin\n")
	}
	fmt.Fprintf(w, "retries:          %d\n", cfg.Retries)
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel:           %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `supportd – customer support chat server and client v%s

Usage:
  supportd -l [options] [host [port]]      Run the server
  supportd [options] [host [port]]         Run a client (stdin, --script or --demo)
  supportd -T user@bastion [host [port]]   Client through an SSH tunnel

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  supportd -l                              Serve on localhost:8888, 2 sessions
  supportd -l -s 10 --idle-timeout 5m 0.0.0.0 9000
  supportd --demo                          Replay the demo conversation
  supportd -f requests.txt --pause 1s      Replay a script
  supportd -T agent@bastion -r 3 support-host 8888
`)
}
