// Package registry tracks live sessions for enumeration and shutdown
// signalling.
//
// The registry never owns a connection.  Each entry holds the session's
// metadata, a close-signal channel the session watches, and a closer
// callback supplied by the session itself for the forced-close path.
// Entries disappear only through an explicit Deregister.
package registry

import (
	"sort"
	"sync"
	"time"

	ncerr "supportd/internal/errors"
)

// Info is the metadata kept per session.
type Info struct {
	ID             string    `json:"id"`
	RemoteAddr     string    `json:"remote_addr"`
	ConnectedSince time.Time `json:"connected_since"`
}

type entry struct {
	info      Info
	signal    chan struct{}
	signalled bool
	closer    func()
}

// Registry is a concurrency-safe id → Info map.  The mutex covers only
// map mutation and snapshots; callbacks run after it is released.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	closing bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a session.  The returned channel is closed when the
// session is asked to shut down; if a broadcast already happened it is
// returned closed.  closer may be nil.
func (r *Registry) Register(info Info, closer func()) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.entries[info.ID]; dup {
		return nil, ncerr.ErrDuplicateSession
	}
	e := &entry{info: info, signal: make(chan struct{}), closer: closer}
	if r.closing {
		close(e.signal)
		e.signalled = true
	}
	r.entries[info.ID] = e
	return e.signal, nil
}

// Deregister removes a session.  It reports whether the id was present.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Lookup returns the metadata for id.
func (r *Registry) Lookup(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// List returns a snapshot ordered by connection time (oldest first).
func (r *Registry) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedSince.Equal(out[j].ConnectedSince) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedSince.Before(out[j].ConnectedSince)
	})
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// BroadcastCloseSignal closes every session's signal channel and marks
// the registry as closing so later registrations start signalled.
// It returns the number of sessions newly signalled.
func (r *Registry) BroadcastCloseSignal() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closing = true
	n := 0
	for _, e := range r.entries {
		if !e.signalled {
			close(e.signal)
			e.signalled = true
			n++
		}
	}
	return n
}

// ForceCloseAll invokes the closer of every still-registered session
// and returns how many there were.  Entries stay until their sessions
// deregister themselves.
func (r *Registry) ForceCloseAll() int {
	r.mu.Lock()
	closers := make([]func(), 0, len(r.entries))
	for _, e := range r.entries {
		closers = append(closers, e.closer)
	}
	r.mu.Unlock()

	for _, c := range closers {
		if c != nil {
			c()
		}
	}
	return len(closers)
}
