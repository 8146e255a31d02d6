package hub

import (
	"testing"

	"chathub/pkg/models"
)

func msg(id int64, sender, receiver, body string) models.Message {
	return models.Message{ID: id, Sender: sender, Receiver: receiver, Body: body, IsPrivate: receiver != ""}
}

func TestRecentRingTrimsToCapacity(t *testing.T) {
	r := newRecentRing(3)
	for i := int64(1); i <= 5; i++ {
		r.add(msg(i, "alice", "", "m"))
	}
	got := r.snapshotFor("alice", nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 cached, got %d", len(got))
	}
	if got[0].ID != 3 || got[2].ID != 5 {
		t.Fatalf("oldest entries not evicted: %+v", got)
	}
}

func TestRecentRingSnapshotVisibility(t *testing.T) {
	r := newRecentRing(10)
	r.add(msg(1, "alice", "", "group"))
	r.add(msg(2, "alice", "bob", "private"))
	r.add(msg(3, "carol", "dave", "other private"))

	got := r.snapshotFor("bob", nil)
	if len(got) != 2 {
		t.Fatalf("bob expected 2 visible, got %d: %+v", len(got), got)
	}
	for _, m := range got {
		if m.ID == 3 {
			t.Fatalf("bob sees a private message he is not part of")
		}
	}
}

func TestRecentRingSnapshotHonorsHiddenConversations(t *testing.T) {
	r := newRecentRing(10)
	r.add(msg(1, "alice", "bob", "hidden away"))
	r.add(msg(2, "carol", "alice", "kept"))
	r.add(msg(3, "alice", "", "group"))

	hidden := map[string]struct{}{"bob": {}}
	got := r.snapshotFor("alice", hidden)
	if len(got) != 2 {
		t.Fatalf("alice expected 2 visible, got %+v", got)
	}
	for _, m := range got {
		if m.Between("alice", "bob") {
			t.Fatalf("hidden conversation resurfaced in snapshot: %+v", m)
		}
	}

	// the overlay is one-sided: bob keeps his copy
	got = r.snapshotFor("bob", nil)
	if len(got) != 2 || got[0].ID != 1 {
		t.Fatalf("bob lost his side of the conversation: %+v", got)
	}
}

func TestRecentRingEditAndDelete(t *testing.T) {
	r := newRecentRing(10)
	r.add(msg(1, "alice", "", "original"))
	r.add(msg(2, "alice", "", "stays"))

	r.applyEdit(1, "rewritten")
	got := r.snapshotFor("alice", nil)
	if got[0].Body != "rewritten" || !got[0].Edited {
		t.Fatalf("edit not applied: %+v", got[0])
	}

	r.applyDelete(1)
	got = r.snapshotFor("alice", nil)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("deleted message still in snapshot: %+v", got)
	}

	// unknown ids are ignored
	r.applyEdit(99, "x")
	r.applyDelete(99)
}

func TestRecentRingDropConversation(t *testing.T) {
	r := newRecentRing(10)
	r.add(msg(1, "alice", "bob", "one"))
	r.add(msg(2, "bob", "alice", "two"))
	r.add(msg(3, "alice", "carol", "keep"))
	r.add(msg(4, "alice", "", "group keep"))

	r.dropConversation("alice", "bob")

	got := r.snapshotFor("alice", nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 remaining, got %+v", got)
	}
	for _, m := range got {
		if m.Between("alice", "bob") {
			t.Fatalf("conversation not dropped: %+v", m)
		}
	}
}
