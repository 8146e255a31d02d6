package hub

import (
	"sync"

	"chathub/pkg/models"
)

// recentRing is the live broadcast cache: the most recent N messages kept
// in memory for the join-time snapshot. It is deliberately distinct from
// the durable log, which is unbounded; mutations here only keep the cache
// consistent with what the store already persisted.
type recentRing struct {
	mu  sync.Mutex
	cap int
	buf []models.Message
}

func newRecentRing(capacity int) *recentRing {
	if capacity <= 0 {
		capacity = 100
	}
	return &recentRing{cap: capacity}
}

func (r *recentRing) add(m models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, m)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

// applyEdit updates the cached copy of an edited message.
func (r *recentRing) applyEdit(id int64, newBody string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.buf {
		if r.buf[i].ID == id {
			r.buf[i].Body = newBody
			r.buf[i].Edited = true
			return
		}
	}
}

// applyDelete blanks the cached copy of a soft-deleted message.
func (r *recentRing) applyDelete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.buf {
		if r.buf[i].ID == id {
			r.buf[i].Body = ""
			r.buf[i].Deleted = true
			return
		}
	}
}

// dropConversation removes private messages between a and b, mirroring a
// physical erasure in the store.
func (r *recentRing) dropConversation(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.buf[:0]
	for _, m := range r.buf {
		if !m.Between(a, b) {
			kept = append(kept, m)
		}
	}
	r.buf = kept
}

// snapshotFor returns the cached messages visible to username, oldest
// first: group messages plus private ones the user participates in.
// Soft-deleted entries and conversations in the hidden set are skipped.
func (r *recentRing) snapshotFor(username string, hidden map[string]struct{}) []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, 0, len(r.buf))
	for _, m := range r.buf {
		if m.Deleted {
			continue
		}
		if m.IsPrivate {
			if m.Sender != username && m.Receiver != username {
				continue
			}
			if _, ok := hidden[m.Counterpart(username)]; ok {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
