package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"supportd/tunnel"
	"supportd/util"
)

// SSHDialer reaches the support server through an SSH bastion.  The
// bastion connection is made on the first Dial and re-made if it drops
// between dials, which is what lets the client's reconnect loop work
// through a tunnel.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	config *tunnel.SSHConfig
	log    *util.Logger

	mu        sync.Mutex
	connected bool
}

// NewSSHDialer returns a dialer for cfg.  Nothing is dialed yet.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		log:    logger.Named("transport"),
	}
}

func (d *SSHDialer) ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.tunnel.IsAlive() {
		return nil
	}
	if d.connected {
		d.log.Warn("bastion connection lost, reconnecting")
		d.tunnel.Close() //nolint:errcheck
		d.connected = false
	}

	d.log.Verbose("opening SSH tunnel via %s@%s:%d", d.config.User, d.config.Host, d.config.Port)
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.connected = true
	return nil
}

// Dial opens a forwarded channel to address, which is resolved on the
// bastion's side.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the bastion connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.connected = false
	return d.tunnel.Close()
}
