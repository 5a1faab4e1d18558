// Package streamregistry implements the Stream Registry (C7): a process-wide
// concurrent mapping from session id to Stream Helper.
package streamregistry

import (
	"sync"

	"goa.design/streamcore/runtime/stream"
)

// sessionSetter is the optional capability a registered Helper may satisfy
// so Register can inform it of the session id it was registered under
// (§4.6 "polymorphic over {setSessionId}").
type sessionSetter interface {
	SetSessionID(id string)
}

// Registry is safe for concurrent Register/Lookup/Unregister from different
// goroutines — Lookup is typically called from a status-update goroutine
// while Unregister is called from the request handler that owns the entry.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*stream.Helper
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{streams: make(map[string]*stream.Helper)}
}

// Register associates sessionID with helper, overwriting any existing entry
// for that id. If helper satisfies the optional sessionSetter capability,
// its SetSessionID is invoked with sessionID.
func (r *Registry) Register(sessionID string, helper *stream.Helper) {
	if setter, ok := any(helper).(sessionSetter); ok {
		setter.SetSessionID(sessionID)
	}
	r.mu.Lock()
	r.streams[sessionID] = helper
	r.mu.Unlock()
}

// Lookup returns the Helper registered under sessionID, or nil, false if
// none is registered.
func (r *Registry) Lookup(sessionID string) (*stream.Helper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.streams[sessionID]
	return h, ok
}

// Unregister removes sessionID's entry. Idempotent: unregistering an id
// that is not present is a no-op.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.streams, sessionID)
	r.mu.Unlock()
}

// Size reports the number of currently registered sessions, for
// diagnostics.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}
