package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/logging"
)

// Message types on the socket. Clients send subscribe, unsubscribe, ping
// and answer; the server sends the rest.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypeAnswer      = "answer"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// WSMessage is one frame on the socket in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels to add or drop.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSAnswerPayload replies to a question broadcast on ui.question.
type WSAnswerPayload struct {
	PromptID string `json:"prompt_id"`
	Yes      bool   `json:"yes"`
}

// PromptAnswerer resolves pending UI questions.
type PromptAnswerer interface {
	Answer(promptID string, yes bool) error
}

// Hub fans events out to connected WebSocket clients by channel.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu       sync.RWMutex
	clients  map[*WSClient]struct{}
	answerer PromptAnswerer
}

// NewHub returns an empty hub. Run must be started for shutdown to
// disconnect clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetAnswerer lets clients answer UI questions over the socket.
func (h *Hub) SetAnswerer(a PromptAnswerer) {
	h.mu.Lock()
	h.answerer = a
	h.mu.Unlock()
}

func (h *Hub) promptAnswerer() PromptAnswerer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.answerer
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", c.subject, "clients", n)
}

// Unregister removes a client and closes its send channel. Only the call
// that actually removes it closes the channel, so racing with Run or a
// second Unregister is safe.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("websocket client disconnected", "subject", c.subject, "clients", n)
	}
}

// Broadcast sends payload as an event to every client subscribed to
// channel. Slow clients whose buffer is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: wsNow(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "channel", channel, "error", err)
		return
	}

	// Client locks are taken one at a time outside the hub lock.
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.isSubscribed(channel) {
			c.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func wsNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
