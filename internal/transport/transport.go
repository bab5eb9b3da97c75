// Package transport opens the client's outbound connection, either
// directly over TCP or through an SSH bastion.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections to the support server.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH client.
	// Stateless dialers return nil.
	Close() error
}
