package store_test

import (
	"testing"

	"chathub/pkg/store"
)

func TestHideIsOneSided(t *testing.T) {
	openStore(t)

	mustAppend(t, "alice", "between us", 0, "bob")
	if err := store.Hide("alice", "bob"); err != nil {
		t.Fatalf("Hide: %v", err)
	}

	hidden, err := store.IsHidden("alice", "bob")
	if err != nil || !hidden {
		t.Fatalf("IsHidden(alice,bob) = %v, %v; want true", hidden, err)
	}
	hidden, err = store.IsHidden("bob", "alice")
	if err != nil || hidden {
		t.Fatalf("IsHidden(bob,alice) = %v, %v; want false", hidden, err)
	}

	aliceHist, err := store.HistoryFor("alice")
	if err != nil {
		t.Fatalf("HistoryFor(alice): %v", err)
	}
	for _, m := range aliceHist {
		if m.Between("alice", "bob") {
			t.Fatalf("alice still sees hidden conversation: %+v", m)
		}
	}

	bobHist, err := store.HistoryFor("bob")
	if err != nil {
		t.Fatalf("HistoryFor(bob): %v", err)
	}
	found := false
	for _, m := range bobHist {
		if m.Between("alice", "bob") {
			found = true
		}
	}
	if !found {
		t.Fatalf("bob lost his copy of the conversation")
	}
}

func TestHideKeysAreUnambiguous(t *testing.T) {
	openStore(t)

	// a colon inside a username must not shift the owner boundary
	if err := store.Hide("a:b", "c"); err != nil {
		t.Fatalf("Hide: %v", err)
	}

	hidden, err := store.IsHidden("a", "b:c")
	if err != nil {
		t.Fatalf("IsHidden(a, b:c): %v", err)
	}
	if hidden {
		t.Fatalf("user a inherited a hide it never requested")
	}
	hidden, err = store.IsHidden("a:b", "c")
	if err != nil || !hidden {
		t.Fatalf("IsHidden(a:b, c) = %v, %v; want true", hidden, err)
	}

	set, err := store.HiddenFor("a")
	if err != nil {
		t.Fatalf("HiddenFor(a): %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("HiddenFor(a) = %v; want empty", set)
	}
	set, err = store.HiddenFor("a:b")
	if err != nil {
		t.Fatalf("HiddenFor(a:b): %v", err)
	}
	if _, ok := set["c"]; !ok || len(set) != 1 {
		t.Fatalf("HiddenFor(a:b) = %v; want {c}", set)
	}
}

func TestHiddenForCollectsCounterparts(t *testing.T) {
	openStore(t)

	if err := store.Hide("alice", "bob"); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if err := store.Hide("alice", "carol"); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	set, err := store.HiddenFor("alice")
	if err != nil {
		t.Fatalf("HiddenFor: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 hidden counterparts, got %d", len(set))
	}
	for _, who := range []string{"bob", "carol"} {
		if _, ok := set[who]; !ok {
			t.Fatalf("missing %s in hidden set", who)
		}
	}
}
