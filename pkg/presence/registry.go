// Package presence tracks which usernames are online and which connection
// currently routes to each of them. It is the single source of truth for
// the online set.
package presence

import (
	"sort"
	"sync"

	"chathub/pkg/models"
)

// Conn is the handle the registry keeps per user. The hub's websocket
// client satisfies it; tests use fakes.
type Conn interface {
	// ID identifies the connection; a reconnect gets a new id.
	ID() string
	// Send queues an event for delivery. It must not block; a false return
	// means the connection is no longer writable.
	Send(ev models.Event) bool
	// Close tears the connection down after queued events are flushed.
	Close()
}

type entry struct {
	username string
	conn     Conn
	online   bool
}

// Registry maps username to its live connection and online flag. Entries
// survive disconnect (online=false) and are removed only by Remove.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Join upserts the entry for username to online with the given connection.
// A second join from a new connection supersedes the old handle for routing
// (last writer wins); the old connection is not closed here.
func (r *Registry) Join(username string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[username]
	if !ok {
		e = &entry{username: username}
		r.entries[username] = e
	}
	e.conn = conn
	e.online = true
}

// Leave marks the user bound to conn as offline. The entry is retained so
// identity and history survive; only the routing goes away. Returns the
// username and whether the connection was the current route.
func (r *Registry) Leave(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.conn != nil && e.conn.ID() == conn.ID() {
			e.online = false
			e.conn = nil
			return e.username, true
		}
	}
	return "", false
}

// Resolve returns the live connection for username, if online.
func (r *Registry) Resolve(username string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[username]
	if !ok || !e.online || e.conn == nil {
		return nil, false
	}
	return e.conn, true
}

// OnlineList returns the online entries sorted by username so broadcasts
// are deterministic.
func (r *Registry) OnlineList() []models.PresenceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PresenceInfo, 0, len(r.entries))
	for _, e := range r.entries {
		if e.online {
			out = append(out, models.PresenceInfo{Username: e.username, Online: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Remove discards the presence entry entirely and returns the live
// connection, if any, so the caller can signal forced logout. Used only by
// admin account deletion.
func (r *Registry) Remove(username string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[username]
	if !ok {
		return nil, false
	}
	delete(r.entries, username)
	if e.online && e.conn != nil {
		return e.conn, true
	}
	return nil, false
}
