// Package core is the orchestration layer.  It hosts the connection
// acceptor and composes it, the client driver, and the transports into
// runnable modes, with a builder that selects the mode from a Config.
//
// Layers (bottom → top):
//
//	frame  →  session/registry  →  core  →  cmd (CLI)
//	transport  →  client  ↗
package core

import "context"

// Mode is one complete way of running supportd: serving, or driving a
// conversation as a client.  Run owns the whole lifecycle and returns
// when the work is done or ctx ends.
type Mode interface {
	Run(ctx context.Context) error
}
