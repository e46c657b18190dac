package gateway

import (
	"sort"
	"sync"

	"github.com/user/gophersearch/internal/types"
)

// Registry maps live connections to the conversation each one is attached
// to. It is written only when a connection opens or closes.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]types.SessionID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]types.SessionID)}
}

func (r *Registry) Register(connID string, id types.SessionID) {
	r.mu.Lock()
	r.conns[connID] = id
	r.mu.Unlock()
}

func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

// Lookup returns the session attached to connID.
func (r *Registry) Lookup(connID string) (types.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conns[connID]
	return id, ok
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Sessions returns the distinct sessions with at least one live
// connection, sorted.
func (r *Registry) Sessions() []types.SessionID {
	r.mu.RLock()
	seen := make(map[types.SessionID]bool, len(r.conns))
	out := make([]types.SessionID, 0, len(r.conns))
	for _, id := range r.conns {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
