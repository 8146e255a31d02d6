// Package typing tracks the ephemeral typing state per user. State is
// rebuilt from events; a disconnect clears the user's entry.
package typing

import (
	"sync"

	"chathub/pkg/models"
)

// Registry maps username to its current typing scope.
type Registry struct {
	mu sync.Mutex
	m  map[string]models.TypingScope
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{m: make(map[string]models.TypingScope)}
}

// Set records that username is typing within scope.
func (r *Registry) Set(username string, scope models.TypingScope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[username] = scope
}

// Clear drops the typing state for username. Also invoked on disconnect.
func (r *Registry) Clear(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, username)
}

// Snapshot returns a copy of the current typing map, broadcast verbatim
// after every change.
func (r *Registry) Snapshot() map[string]models.TypingScope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.TypingScope, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out
}
