package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"supportd/util"
)

// ServeMode runs the support server until ctx is cancelled.
type ServeMode struct {
	Address string
	Config  ServerConfig
	Logger  *util.Logger

	// Stats prints the metrics snapshot as JSON to Stdout on exit.
	Stats  bool
	Stdout io.Writer

	// Started, if set, receives the server once it is listening.
	Started func(*Server)
}

// Run binds, serves, and shuts down gracefully when ctx ends.  A bind
// failure is returned as is.
func (m *ServeMode) Run(ctx context.Context) error {
	log := m.Logger
	if log == nil {
		log = util.NewLogger(0)
	}
	m.Config.Logger = log

	srv, err := Start(ctx, m.Address, m.Config)
	if err != nil {
		return err
	}
	log.Info("serving on %s", srv.Addr())
	if m.Started != nil {
		m.Started(srv)
	}

	<-ctx.Done()
	log.Info("shutting down, waiting up to %v for %d sessions",
		srv.cfg.ShutdownTimeout, len(srv.Sessions()))
	if forced := srv.Shutdown(srv.cfg.ShutdownTimeout); forced > 0 {
		log.Warn("%d sessions did not finish in time and were closed", forced)
	}

	if m.Stats {
		out := m.Stdout
		if out == nil {
			out = os.Stdout
		}
		fmt.Fprintln(out, srv.Metrics().JSON())
	}
	return nil
}
