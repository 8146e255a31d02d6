package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"chathub/pkg/logger"
	"chathub/pkg/models"
	"chathub/pkg/telemetry"
)

// connState is the per-connection protocol state. Disconnected is terminal;
// a reconnect is a logically new connection.
type connState int

const (
	stateUnauthenticated connState = iota
	stateJoined
	stateDisconnected
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one websocket connection. It satisfies presence.Conn.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan models.Event
	limiter *rate.Limiter
	addr    string

	quit      chan struct{}
	quitOnce  sync.Once
	closeOnce sync.Once

	// username and state are owned by the hub and mutated only under its
	// serialization lock.
	username string
	state    connState
}

func newClient(h *Hub, conn *websocket.Conn, addr string) *Client {
	cfg := h.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan models.Event, cfg.SendBuffer),
		quit:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.EventRate), cfg.EventBurst),
		addr:    addr,
	}
}

// ID identifies the connection.
func (c *Client) ID() string { return c.id }

// Send queues an event without blocking. A full buffer reports failure and
// the hub drops the connection.
func (c *Client) Send(ev models.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close asks the write pump to flush queued events, send a close frame and
// tear the socket down. The read pump then drives the normal unregister
// path.
func (c *Client) Close() {
	c.quitOnce.Do(func() { close(c.quit) })
}

// closeNow tears the socket down immediately, skipping the flush.
func (c *Client) closeNow() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.closeNow()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws_read_error", "addr", c.addr, "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			telemetry.EventsDropped.WithLabelValues("rate_limit").Inc()
			logger.Debug("event_rate_limited", "addr", c.addr)
			continue
		}
		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			telemetry.EventsDropped.WithLabelValues("decode").Inc()
			logger.Debug("event_decode_failed", "addr", c.addr, "error", err)
			continue
		}
		c.hub.dispatch(c, ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeNow()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				logger.Debug("ws_write_error", "addr", c.addr, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			// drain queued events, then signal close to the peer
			for {
				select {
				case ev, ok := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if !ok {
						_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
						return
					}
					if err := c.conn.WriteJSON(ev); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}
