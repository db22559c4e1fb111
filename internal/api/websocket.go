package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/brickplay-core/internal/auth"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
)

// WSClient is one connected socket and the channels it listens to.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}

	// From the ticket the connection was opened with.
	subject string
	role    auth.Role
}

// wsInbound is a client frame with its payload left undecoded until the
// type is known.
type wsInbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// CORS middleware has already vetted the origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades a request carrying a ticket from
// POST /auth/ws-ticket. Browsers cannot set headers on a socket, so the
// ticket stands in for the bearer token.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       entry.subject,
		role:          entry.role,
	}
	s.hub.Register(c)

	keepalive := newWSKeepalive(s.wsCfg)
	go c.writeLoop(keepalive)
	go c.readLoop(keepalive, int64(s.wsCfg.MaxMessageSize))
}

type wsKeepalive struct {
	ping     time.Duration // how often we ping
	deadline time.Duration // silence tolerated before the read fails
	write    time.Duration // per-frame write budget
}

func newWSKeepalive(cfg config.WebSocketConfig) wsKeepalive {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return wsKeepalive{ping: ping, deadline: ping + pong, write: pong}
}

func (c *WSClient) readLoop(ka wsKeepalive, limit int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ka.deadline)) }
	c.conn.SetReadLimit(limit)
	c.conn.SetPongHandler(func(string) error { return extend() })
	extend() //nolint:errcheck // a failed deadline surfaces as a read error

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers don't always answer protocol pings; any frame counts.
		extend() //nolint:errcheck // as above
		c.handleMessage(data)
	}
}

func (c *WSClient) writeLoop(ka wsKeepalive) {
	ticker := time.NewTicker(ka.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(ka.write)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one client frame. Every frame with an ID gets
// exactly one reply carrying that ID.
func (c *WSClient) handleMessage(data []byte) {
	var in wsInbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.fail("", "invalid JSON message")
		return
	}

	switch in.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if err := decodeWSPayload(in.Payload, &p); err != nil {
			c.fail(in.ID, "invalid "+in.Type+" payload")
			return
		}
		on := in.Type == WSTypeSubscribe
		c.setChannels(p.Channels, on)
		key := "unsubscribed"
		if on {
			key = "subscribed"
			c.hub.logger.Info("websocket client subscribed", "subject", c.subject, "channels", p.Channels)
		}
		c.reply(in.ID, WSTypeResponse, map[string]any{key: p.Channels})

	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)

	case WSTypeAnswer:
		c.answer(in)

	default:
		c.fail(in.ID, "unknown message type: "+in.Type)
	}
}

// answer resolves a UI question. The questions confirm binding edits, so
// answering takes the edit permission.
func (c *WSClient) answer(in wsInbound) {
	if !auth.HasPermission(c.role, auth.PermCreationEdit) {
		c.fail(in.ID, "missing permission "+string(auth.PermCreationEdit))
		return
	}
	var p WSAnswerPayload
	if err := decodeWSPayload(in.Payload, &p); err != nil || p.PromptID == "" {
		c.fail(in.ID, "invalid answer payload")
		return
	}

	answerer := c.hub.promptAnswerer()
	if answerer == nil {
		c.fail(in.ID, "prompts are not available")
		return
	}
	if err := answerer.Answer(p.PromptID, p.Yes); err != nil {
		c.fail(in.ID, err.Error())
		return
	}
	c.reply(in.ID, WSTypeResponse, map[string]any{"answered": p.PromptID})
}

func decodeWSPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (c *WSClient) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend queues data without blocking. A full buffer drops the frame, and
// a channel already closed by Unregister is tolerated.
func (c *WSClient) trySend(data []byte) {
	defer func() { recover() }() //nolint:errcheck // send on closed channel

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{Type: msgType, ID: id, Timestamp: wsNow(), Payload: payload})
	if err == nil {
		c.trySend(data)
	}
}

func (c *WSClient) fail(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
