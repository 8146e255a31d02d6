package hub_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chathub/pkg/accounts"
	"chathub/pkg/hub"
	"chathub/pkg/models"
	"chathub/pkg/store"
)

const readTimeout = 3 * time.Second

func setupHub(t *testing.T) (*hub.Hub, *httptest.Server, *accounts.Service) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	acc := accounts.New("simeon", "123456")
	h := hub.New(hub.DefaultConfig(), acc)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
		_ = store.Close()
	})
	return h, srv, acc
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, kind models.EventKind, payload any) {
	t.Helper()
	if err := ws.WriteJSON(models.MustEvent(kind, payload)); err != nil {
		t.Fatalf("write %s: %v", kind, err)
	}
}

// nextEvent reads exactly the next event on the connection.
func nextEvent(t *testing.T, ws *websocket.Conn) models.Event {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	var ev models.Event
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

// waitFor reads events until one of the given kind arrives.
func waitFor(t *testing.T, ws *websocket.Conn, kind models.EventKind) models.Event {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		_ = ws.SetReadDeadline(deadline)
		var ev models.Event
		if err := ws.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", kind, err)
		}
		if ev.Kind == kind {
			return ev
		}
	}
	t.Fatalf("timed out waiting for %s", kind)
	return models.Event{}
}

// join sends user_join and drains the joiner's snapshot events.
func join(t *testing.T, ws *websocket.Conn, username string) {
	t.Helper()
	send(t, ws, models.EvUserJoin, models.UserJoinPayload{Username: username})
	waitFor(t, ws, models.EvRecentMessages)
	waitFor(t, ws, models.EvTypingUsers)
}

func TestJoinAnnouncesPresence(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")

	bob := dial(t, srv)
	send(t, bob, models.EvUserJoin, models.UserJoinPayload{Username: "bob"})

	ev := waitFor(t, alice, models.EvUserJoined)
	var p models.UserPresencePayload
	if err := ev.Decode(&p); err != nil || p.Username != "bob" {
		t.Fatalf("user_joined payload = %+v, %v", p, err)
	}

	ev = waitFor(t, bob, models.EvUserList)
	var list []models.PresenceInfo
	if err := ev.Decode(&list); err != nil {
		t.Fatalf("decode user_list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 online, got %+v", list)
	}
}

func TestEventsBeforeJoinAreDropped(t *testing.T) {
	_, srv, _ := setupHub(t)

	ws := dial(t, srv)
	// not joined yet: this must produce no broadcast and no state change
	send(t, ws, models.EvSendMessage, models.SendMessagePayload{Body: "too early"})
	join(t, ws, "alice")

	send(t, ws, models.EvSendMessage, models.SendMessagePayload{Body: "after join"})
	ev := waitFor(t, ws, models.EvReceiveMessage)
	var m models.Message
	if err := ev.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Body != "after join" {
		t.Fatalf("pre-join message leaked: %+v", m)
	}

	hist, err := store.HistoryFor("alice")
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(hist))
	}
}

func TestGroupMessageBroadcast(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	bob := dial(t, srv)
	join(t, bob, "bob")
	waitFor(t, alice, models.EvUserJoined)

	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "hello room"})

	for _, ws := range []*websocket.Conn{alice, bob} {
		ev := waitFor(t, ws, models.EvReceiveMessage)
		var m models.Message
		if err := ev.Decode(&m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.Sender != "alice" || m.Body != "hello room" || m.ID == 0 {
			t.Fatalf("bad broadcast message: %+v", m)
		}
	}
}

func TestPrivateMessageRouting(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	bob := dial(t, srv)
	join(t, bob, "bob")
	carol := dial(t, srv)
	join(t, carol, "carol")
	waitFor(t, alice, models.EvUserJoined)
	waitFor(t, alice, models.EvUserJoined)
	waitFor(t, bob, models.EvUserJoined)

	send(t, alice, models.EvPrivateMessage, models.PrivateMessagePayload{To: "bob", Body: "psst"})

	for _, ws := range []*websocket.Conn{alice, bob} {
		ev := waitFor(t, ws, models.EvPrivateMessage)
		var m models.Message
		if err := ev.Decode(&m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.Sender != "alice" || m.Receiver != "bob" || !m.IsPrivate {
			t.Fatalf("bad private message: %+v", m)
		}
	}

	// carol must not see it: her next event is the group message below
	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "public"})
	ev := nextEvent(t, carol)
	if ev.Kind != models.EvReceiveMessage {
		t.Fatalf("carol received %s before the group message", ev.Kind)
	}
}

func TestPrivateMessageToOfflineUserIsStored(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")

	send(t, alice, models.EvPrivateMessage, models.PrivateMessagePayload{To: "bob", Body: "read this later"})
	waitFor(t, alice, models.EvPrivateMessage)

	hist, err := store.HistoryFor("bob")
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	if len(hist) != 1 || hist[0].Body != "read this later" {
		t.Fatalf("offline delivery not stored: %+v", hist)
	}
}

func TestEditBroadcastAndForeignEditAbsorbed(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	bob := dial(t, srv)
	join(t, bob, "bob")
	waitFor(t, alice, models.EvUserJoined)

	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "tpyo"})
	ev := waitFor(t, bob, models.EvReceiveMessage)
	var m models.Message
	if err := ev.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	waitFor(t, alice, models.EvReceiveMessage)

	// a foreign edit is absorbed silently
	send(t, bob, models.EvEditMessage, models.EditPayload{ID: m.ID, NewBody: "hijack"})
	// the owner's edit lands
	send(t, alice, models.EvEditMessage, models.EditPayload{ID: m.ID, NewBody: "typo"})

	ev = nextEvent(t, bob)
	if ev.Kind != models.EvMessageEdited {
		t.Fatalf("expected message_edited, got %s", ev.Kind)
	}
	var ed models.EditedPayload
	if err := ev.Decode(&ed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ed.ID != m.ID || ed.NewBody != "typo" {
		t.Fatalf("wrong edit broadcast: %+v", ed)
	}

	got, err := store.Get(m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Body != "typo" {
		t.Fatalf("foreign edit leaked into store: %q", got.Body)
	}
}

func TestPrivateMutationsCannotTargetGroupMessage(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")

	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "room note"})
	ev := waitFor(t, alice, models.EvReceiveMessage)
	var m models.Message
	if err := ev.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// private-scoped events against a group id are dropped
	send(t, alice, models.EvEditPrivate, models.EditPayload{ID: m.ID, NewBody: "sneaky"})
	send(t, alice, models.EvDeletePrivate, models.DeletePayload{ID: m.ID})

	// the next broadcast must be the group message below, not an edit/delete
	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "still here"})
	ev = nextEvent(t, alice)
	if ev.Kind != models.EvReceiveMessage {
		t.Fatalf("scope mismatch was broadcast as %s", ev.Kind)
	}

	got, err := store.Get(m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Body != "room note" || got.Edited || got.Deleted {
		t.Fatalf("group message mutated through private events: %+v", got)
	}
}

func TestSecondJoinOnLiveConnectionIgnored(t *testing.T) {
	h, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")

	send(t, alice, models.EvUserJoin, models.UserJoinPayload{Username: "impostor"})

	// the connection keeps its identity and no phantom entry goes online
	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "ping"})
	ev := nextEvent(t, alice)
	if ev.Kind != models.EvReceiveMessage {
		t.Fatalf("expected receive_message, got %s", ev.Kind)
	}
	var m models.Message
	if err := ev.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Sender != "alice" {
		t.Fatalf("connection was re-keyed to %q", m.Sender)
	}
	list := h.Presence().OnlineList()
	if len(list) != 1 || list[0].Username != "alice" {
		t.Fatalf("online list after duplicate join: %+v", list)
	}
}

func TestDeleteBroadcast(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")

	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "oops"})
	ev := waitFor(t, alice, models.EvReceiveMessage)
	var m models.Message
	if err := ev.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}

	send(t, alice, models.EvDeleteMessage, models.DeletePayload{ID: m.ID})
	ev = waitFor(t, alice, models.EvMessageDeleted)
	var dp models.DeletedPayload
	if err := ev.Decode(&dp); err != nil || dp.ID != m.ID {
		t.Fatalf("message_deleted payload = %+v, %v", dp, err)
	}

	got, err := store.Get(m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Deleted || got.Body != "" {
		t.Fatalf("not soft deleted: %+v", got)
	}
}

func TestTypingSnapshotBroadcast(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	bob := dial(t, srv)
	join(t, bob, "bob")

	send(t, alice, models.EvTyping, models.TypingPayload{IsTyping: true, Scope: models.TypingScope{Private: true, Peer: "bob"}})
	ev := waitFor(t, bob, models.EvTypingUsers)
	var snap map[string]models.TypingScope
	if err := ev.Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s, ok := snap["alice"]; !ok || !s.Private || s.Peer != "bob" {
		t.Fatalf("typing snapshot wrong: %+v", snap)
	}

	send(t, alice, models.EvTyping, models.TypingPayload{IsTyping: false})
	ev = waitFor(t, bob, models.EvTypingUsers)
	snap = nil
	if err := ev.Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := snap["alice"]; ok {
		t.Fatalf("alice still typing after stop: %+v", snap)
	}
}

func TestDeletePrivateChatErasesBothSides(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	bob := dial(t, srv)
	join(t, bob, "bob")
	waitFor(t, alice, models.EvUserJoined)

	send(t, alice, models.EvPrivateMessage, models.PrivateMessagePayload{To: "bob", Body: "delete me"})
	waitFor(t, bob, models.EvPrivateMessage)
	waitFor(t, alice, models.EvPrivateMessage)

	send(t, alice, models.EvDeletePrivateChat, models.DeletePrivateChatPayload{OtherUser: "bob"})

	waitFor(t, alice, models.EvPrivateChatGone)
	ev := waitFor(t, bob, models.EvPrivateChatGoneBy)
	var by models.ChatDeletedByPayload
	if err := ev.Decode(&by); err != nil || by.Username != "alice" {
		t.Fatalf("deleted_by payload = %+v, %v", by, err)
	}

	for _, user := range []string{"alice", "bob"} {
		hist, err := store.HistoryFor(user)
		if err != nil {
			t.Fatalf("HistoryFor(%s): %v", user, err)
		}
		if len(hist) != 0 {
			t.Fatalf("%s still sees erased messages: %+v", user, hist)
		}
	}
}

func TestBlacklistedJoinForcedOut(t *testing.T) {
	_, srv, _ := setupHub(t)

	if err := store.Blacklist("mallory"); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	ws := dial(t, srv)
	send(t, ws, models.EvUserJoin, models.UserJoinPayload{Username: "mallory"})

	ev := nextEvent(t, ws)
	if ev.Kind != models.EvForceLogout {
		t.Fatalf("expected force_logout, got %s", ev.Kind)
	}
}

func TestJoinSnapshotCarriesRecentMessages(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "one"})
	send(t, alice, models.EvSendMessage, models.SendMessagePayload{Body: "two"})
	waitFor(t, alice, models.EvReceiveMessage)
	waitFor(t, alice, models.EvReceiveMessage)

	bob := dial(t, srv)
	send(t, bob, models.EvUserJoin, models.UserJoinPayload{Username: "bob"})
	ev := waitFor(t, bob, models.EvRecentMessages)
	var snap []models.Message
	if err := ev.Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap) != 2 || snap[0].Body != "one" || snap[1].Body != "two" {
		t.Fatalf("snapshot wrong: %+v", snap)
	}
}

func TestJoinSnapshotSkipsHiddenConversation(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	send(t, alice, models.EvPrivateMessage, models.PrivateMessagePayload{To: "bob", Body: "secret"})
	waitFor(t, alice, models.EvPrivateMessage)

	if err := store.Hide("bob", "alice"); err != nil {
		t.Fatalf("Hide: %v", err)
	}

	bob := dial(t, srv)
	send(t, bob, models.EvUserJoin, models.UserJoinPayload{Username: "bob"})
	ev := waitFor(t, bob, models.EvRecentMessages)
	var snap []models.Message
	if err := ev.Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("hidden conversation resurfaced at join: %+v", snap)
	}
}

func TestDeleteUserForcesLogout(t *testing.T) {
	h, srv, acc := setupHub(t)

	if err := acc.Register("bob", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	bob := dial(t, srv)
	join(t, bob, "bob")

	if err := h.DeleteUser("bob"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	ev := nextEvent(t, bob)
	if ev.Kind != models.EvForceLogout {
		t.Fatalf("expected force_logout, got %s", ev.Kind)
	}
	black, err := store.IsBlacklisted("bob")
	if err != nil || !black {
		t.Fatalf("deleted user not blacklisted: %v, %v", black, err)
	}
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	_, srv, _ := setupHub(t)

	alice := dial(t, srv)
	join(t, alice, "alice")
	bob := dial(t, srv)
	join(t, bob, "bob")
	waitFor(t, alice, models.EvUserJoined)

	_ = bob.Close()

	ev := waitFor(t, alice, models.EvUserLeft)
	var p models.UserPresencePayload
	if err := ev.Decode(&p); err != nil || p.Username != "bob" {
		t.Fatalf("user_left payload = %+v, %v", p, err)
	}
	ev = waitFor(t, alice, models.EvUserList)
	var list []models.PresenceInfo
	if err := ev.Decode(&list); err != nil {
		t.Fatalf("decode user_list: %v", err)
	}
	if len(list) != 1 || list[0].Username != "alice" {
		t.Fatalf("online list after leave: %+v", list)
	}
}
