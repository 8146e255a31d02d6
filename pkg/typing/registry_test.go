package typing_test

import (
	"testing"

	"chathub/pkg/models"
	"chathub/pkg/typing"
)

func TestSetClearSnapshot(t *testing.T) {
	r := typing.New()

	r.Set("alice", models.TypingScope{})
	r.Set("bob", models.TypingScope{Private: true, Peer: "alice"})

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 typing entries, got %d", len(snap))
	}
	if s := snap["bob"]; !s.Private || s.Peer != "alice" {
		t.Fatalf("bob scope wrong: %+v", s)
	}

	r.Clear("alice")
	snap = r.Snapshot()
	if _, ok := snap["alice"]; ok {
		t.Fatalf("alice still typing after Clear")
	}
	// clearing an absent user is a no-op
	r.Clear("nobody")
}

func TestSnapshotIsACopy(t *testing.T) {
	r := typing.New()
	r.Set("alice", models.TypingScope{})

	snap := r.Snapshot()
	delete(snap, "alice")
	if _, ok := r.Snapshot()["alice"]; !ok {
		t.Fatalf("mutating a snapshot leaked into the registry")
	}
}
