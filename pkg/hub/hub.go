// Package hub is the realtime fan-out and session protocol: it turns
// inbound client events into store/registry mutations and pushes the
// resulting state changes back out to one or many connections.
package hub

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"chathub/pkg/accounts"
	"chathub/pkg/logger"
	"chathub/pkg/models"
	"chathub/pkg/presence"
	"chathub/pkg/store"
	"chathub/pkg/telemetry"
	"chathub/pkg/typing"
)

// Config holds hub tunables, populated from the config file.
type Config struct {
	// SendBuffer is the per-client outbound event buffer.
	SendBuffer int
	// MaxMessageSize caps an inbound websocket frame in bytes.
	MaxMessageSize int64
	// EventRate/EventBurst bound inbound events per client.
	EventRate  float64
	EventBurst int
	// RecentSize caps the in-memory broadcast cache.
	RecentSize int
	// AllowedOrigins restricts websocket upgrades; empty allows all.
	AllowedOrigins []string
}

// DefaultConfig returns the hub defaults used when config omits the section.
func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		MaxMessageSize: 8 * 1024,
		EventRate:      20,
		EventBurst:     40,
		RecentSize:     100,
	}
}

// Hub owns the presence and typing registries and serializes every state
// mutation behind one lock, for realtime events and HTTP commands alike.
type Hub struct {
	cfg      Config
	accounts *accounts.Service
	presence *presence.Registry
	typing   *typing.Registry
	recent   *recentRing

	mu      sync.Mutex
	clients map[*Client]struct{}

	upgrader websocket.Upgrader
}

// New wires a Hub over the given account service. The store must be open.
func New(cfg Config, acc *accounts.Service) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 8 * 1024
	}
	if cfg.EventRate <= 0 {
		cfg.EventRate = 20
	}
	if cfg.EventBurst <= 0 {
		cfg.EventBurst = 40
	}
	h := &Hub{
		cfg:      cfg,
		accounts: acc,
		presence: presence.New(),
		typing:   typing.New(),
		recent:   newRecentRing(cfg.RecentSize),
		clients:  make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Presence exposes the registry for the HTTP query surface.
func (h *Hub) Presence() *presence.Registry { return h.presence }

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and starts the connection's pumps. The
// connection is Unauthenticated until a user_join event arrives.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := newClient(h, conn, r.RemoteAddr)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	telemetry.ConnectedClients.Set(float64(n))
	logger.Info("client_connected", "conn", c.id, "remote", c.addr, "total", n)
	go c.writePump()
	go c.readPump()
}

// unregister runs the disconnect transition: Presence leave, typing clear,
// and re-broadcast of the online list and typing snapshot.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	c.state = stateDisconnected
	username := c.username
	n := len(h.clients)
	if username != "" {
		if _, current := h.presence.Leave(c); current {
			h.typing.Clear(username)
			h.broadcastLocked(models.MustEvent(models.EvUserLeft, models.UserPresencePayload{Username: username}))
			h.broadcastLocked(models.MustEvent(models.EvUserList, h.presence.OnlineList()))
			h.broadcastLocked(models.MustEvent(models.EvTypingUsers, h.typing.Snapshot()))
		}
	}
	h.mu.Unlock()
	close(c.send)
	telemetry.ConnectedClients.Set(float64(n))
	logger.Info("client_disconnected", "conn", c.id, "user", displayName(h.accounts, username), "total", n)
}

// dispatch applies one inbound event. Authorization and not-found failures
// are absorbed silently: no event is emitted and the sender observes no
// state change.
func (h *Hub) dispatch(c *Client, ev models.Event) {
	telemetry.EventsIn.WithLabelValues(string(ev.Kind)).Inc()
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.state == stateDisconnected {
		return
	}
	if c.state == stateUnauthenticated && ev.Kind != models.EvUserJoin {
		telemetry.EventsDropped.WithLabelValues("unauthorized").Inc()
		logger.Debug("event_before_join_dropped", "conn", c.id, "kind", ev.Kind)
		return
	}
	switch ev.Kind {
	case models.EvUserJoin:
		h.handleJoin(c, ev)
	case models.EvSendMessage:
		h.handleSend(c, ev)
	case models.EvPrivateMessage:
		h.handlePrivate(c, ev)
	case models.EvTyping:
		h.handleTyping(c, ev)
	case models.EvEditMessage:
		h.handleEdit(c, ev, false, models.EvMessageEdited)
	case models.EvEditPrivate:
		h.handleEdit(c, ev, true, models.EvPrivateEdited)
	case models.EvDeleteMessage:
		h.handleDelete(c, ev, false, models.EvMessageDeleted)
	case models.EvDeletePrivate:
		h.handleDelete(c, ev, true, models.EvPrivateDeleted)
	case models.EvDeletePrivateChat:
		h.handleErase(c, ev)
	default:
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		logger.Debug("unknown_event_kind", "conn", c.id, "kind", ev.Kind)
	}
}

func (h *Hub) handleJoin(c *Client, ev models.Event) {
	// no Joined to Joined transition: a live connection keeps its username
	if c.state == stateJoined {
		telemetry.EventsDropped.WithLabelValues("unauthorized").Inc()
		logger.Debug("duplicate_join_dropped", "conn", c.id, "user", c.username)
		return
	}
	var p models.UserJoinPayload
	if err := ev.Decode(&p); err != nil || strings.TrimSpace(p.Username) == "" {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	username := strings.TrimSpace(p.Username)
	black, err := store.IsBlacklisted(username)
	if err != nil {
		logger.Error("join_blacklist_check_failed", "user", username, "error", err)
		return
	}
	if black {
		c.Send(models.Event{Kind: models.EvForceLogout})
		c.Close()
		logger.Info("join_rejected_blacklisted", "user", username, "conn", c.id)
		return
	}
	h.presence.Join(username, c)
	c.username = username
	c.state = stateJoined
	h.broadcastLocked(models.MustEvent(models.EvUserList, h.presence.OnlineList()))
	h.broadcastLocked(models.MustEvent(models.EvUserJoined, models.UserPresencePayload{Username: username}))
	// Join-time snapshots go only to the new connection. The snapshot honors
	// the same visibility overlay as a history fetch.
	hidden, err := store.HiddenFor(username)
	if err != nil {
		logger.Error("join_hidden_lookup_failed", "user", username, "error", err)
		hidden = nil
	}
	c.Send(models.MustEvent(models.EvRecentMessages, h.recent.snapshotFor(username, hidden)))
	c.Send(models.MustEvent(models.EvTypingUsers, h.typing.Snapshot()))
	logger.Info("user_joined", "user", displayName(h.accounts, username), "conn", c.id)
}

func (h *Hub) handleSend(c *Client, ev models.Event) {
	var p models.SendMessagePayload
	if err := ev.Decode(&p); err != nil {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	body := strings.TrimSpace(p.Body)
	if body == "" {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	m, err := store.Append(c.username, body, p.ReplyTo, "")
	if err != nil {
		logger.Error("group_message_append_failed", "user", c.username, "error", err)
		return
	}
	telemetry.StoreMutations.WithLabelValues("append").Inc()
	h.recent.add(m)
	h.broadcastLocked(models.MustEvent(models.EvReceiveMessage, m))
}

func (h *Hub) handlePrivate(c *Client, ev models.Event) {
	var p models.PrivateMessagePayload
	if err := ev.Decode(&p); err != nil {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	body := strings.TrimSpace(p.Body)
	if body == "" || p.To == "" {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	m, err := store.Append(c.username, body, p.ReplyTo, p.To)
	if err != nil {
		logger.Error("private_message_append_failed", "user", c.username, "error", err)
		return
	}
	telemetry.StoreMutations.WithLabelValues("append").Inc()
	h.recent.add(m)
	out := models.MustEvent(models.EvPrivateMessage, m)
	// Echo to sender; route to recipient only when online. The message is
	// stored either way and shows up on the recipient's next history fetch.
	c.Send(out)
	if conn, ok := h.presence.Resolve(p.To); ok {
		conn.Send(out)
	}
	telemetry.BroadcastFanout.Observe(2)
}

func (h *Hub) handleTyping(c *Client, ev models.Event) {
	var p models.TypingPayload
	if err := ev.Decode(&p); err != nil {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	if p.IsTyping {
		h.typing.Set(c.username, p.Scope)
	} else {
		h.typing.Clear(c.username)
	}
	h.broadcastLocked(models.MustEvent(models.EvTypingUsers, h.typing.Snapshot()))
}

func (h *Hub) handleEdit(c *Client, ev models.Event, wantPrivate bool, out models.EventKind) {
	var p models.EditPayload
	if err := ev.Decode(&p); err != nil {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	if !h.scopeMatches(c, "edit", p.ID, wantPrivate) {
		return
	}
	m, err := store.Edit(p.ID, c.username, p.NewBody)
	if err != nil {
		h.absorb("edit", c, p.ID, err)
		return
	}
	telemetry.StoreMutations.WithLabelValues("edit").Inc()
	h.recent.applyEdit(m.ID, m.Body)
	h.broadcastLocked(models.MustEvent(out, models.EditedPayload{ID: m.ID, NewBody: m.Body}))
}

func (h *Hub) handleDelete(c *Client, ev models.Event, wantPrivate bool, out models.EventKind) {
	var p models.DeletePayload
	if err := ev.Decode(&p); err != nil {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	if !h.scopeMatches(c, "delete", p.ID, wantPrivate) {
		return
	}
	m, err := store.SoftDelete(p.ID, c.username)
	if err != nil {
		h.absorb("delete", c, p.ID, err)
		return
	}
	telemetry.StoreMutations.WithLabelValues("soft_delete").Inc()
	h.recent.applyDelete(m.ID)
	h.broadcastLocked(models.MustEvent(out, models.DeletedPayload{ID: m.ID}))
}

func (h *Hub) handleErase(c *Client, ev models.Event) {
	var p models.DeletePrivateChatPayload
	if err := ev.Decode(&p); err != nil {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	// The deleter is always the joined user on this connection.
	other := p.OtherUser
	if other == "" {
		telemetry.EventsDropped.WithLabelValues("decode").Inc()
		return
	}
	if _, err := store.EraseConversation(c.username, other); err != nil {
		logger.Error("erase_conversation_failed", "user", c.username, "other", other, "error", err)
		return
	}
	telemetry.StoreMutations.WithLabelValues("erase").Inc()
	h.recent.dropConversation(c.username, other)
	c.Send(models.Event{Kind: models.EvPrivateChatGone})
	if conn, ok := h.presence.Resolve(other); ok {
		conn.Send(models.MustEvent(models.EvPrivateChatGoneBy, models.ChatDeletedByPayload{Username: c.username}))
	}
}

// scopeMatches verifies the targeted message is private or group as the
// event kind demands. The group and private mutation events are not
// interchangeable, so a mismatch is dropped before any state changes.
func (h *Hub) scopeMatches(c *Client, op string, id int64, wantPrivate bool) bool {
	m, err := store.Get(id)
	if err != nil {
		h.absorb(op, c, id, err)
		return false
	}
	if m.IsPrivate != wantPrivate {
		telemetry.EventsDropped.WithLabelValues("unauthorized").Inc()
		logger.Debug("mutation_scope_mismatch", "op", op, "user", c.username, "id", id, "private", m.IsPrivate)
		return false
	}
	return true
}

// absorb logs a silently-dropped mutation failure per the protocol policy.
func (h *Hub) absorb(op string, c *Client, id int64, err error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotAuthorized) {
		telemetry.EventsDropped.WithLabelValues("unauthorized").Inc()
		logger.Debug("mutation_absorbed", "op", op, "user", c.username, "id", id, "reason", err)
		return
	}
	logger.Error("mutation_failed", "op", op, "user", c.username, "id", id, "error", err)
}

// broadcastLocked sends ev to every connection. Callers hold h.mu. Clients
// whose buffers are full are closed; their pumps drive unregister from
// another goroutine.
func (h *Hub) broadcastLocked(ev models.Event) {
	reached := 0
	for c := range h.clients {
		if c.Send(ev) {
			reached++
		} else {
			logger.Warn("client_send_buffer_full", "conn", c.id, "user", c.username)
			c.Close()
		}
	}
	telemetry.BroadcastFanout.Observe(float64(reached))
}

// --- command surface used by the HTTP layer ---

// DeleteUser is the admin account-deletion command: the account is removed
// and blacklisted, any live connection gets force_logout and is dropped,
// and the presence entry is discarded.
func (h *Hub) DeleteUser(username string) error {
	if err := h.accounts.Delete(username); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.presence.Remove(username); ok {
		conn.Send(models.Event{Kind: models.EvForceLogout})
		conn.Close()
	}
	h.typing.Clear(username)
	h.broadcastLocked(models.MustEvent(models.EvUserList, h.presence.OnlineList()))
	return nil
}

// HideConversation applies the one-sided visibility overlay and nudges the
// hiding user's connection to refetch history.
func (h *Hub) HideConversation(username, other string) error {
	if err := store.Hide(username, other); err != nil {
		return err
	}
	telemetry.StoreMutations.WithLabelValues("hide").Inc()
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.presence.Resolve(username); ok {
		conn.Send(models.Event{Kind: models.EvPrivateChatGone})
	}
	return nil
}

// Shutdown closes every connection. Pumps drain via the usual unregister
// path.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	cs := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		cs = append(cs, c)
	}
	h.mu.Unlock()
	for _, c := range cs {
		c.Close()
	}
	logger.Info("hub_shutdown", "closed", len(cs))
}

func displayName(acc *accounts.Service, username string) string {
	if username == "" {
		return ""
	}
	if acc != nil && acc.IsAdmin(username) {
		return "ADMIN"
	}
	return username
}
