package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/logging"
)

// Message types on the websocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelDevices carries change snapshots: a JSON array of the devices
// changed since the previous push.
const ChannelDevices = "devices.changed"

const (
	wsSendBufferSize = 256

	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
	defaultMaxMessageSize = 8192
)

// WSMessage is the envelope of every frame the hub sends.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound frame. The payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// channelSet is the set of channels one client listens on.
type channelSet map[string]struct{}

func newChannelSet(channels ...string) channelSet {
	s := make(channelSet, len(channels))
	for _, ch := range channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			s[ch] = struct{}{}
		}
	}
	return s
}

// Hub tracks websocket clients and fans events out to them.
//
// It is a gateway change sink: Notify pushes each change snapshot to the
// clients subscribed to ChannelDevices.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one websocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs channelSet
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// LAN-only service
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a websocket hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
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
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// listeners returns the clients subscribed to channel.
func (h *Hub) listeners(channel string) []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*WSClient
	for c := range h.clients {
		if c.subscribed(channel) {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast sends payload as an event to every client on channel. Slow
// clients whose buffers are full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	targets := h.listeners(channel)
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	for _, c := range targets {
		c.enqueue(data)
	}
	h.logger.Debug("broadcast sent", "channel", channel, "recipients", len(targets))
}

// HasSubscribers reports whether any client listens on ChannelDevices.
func (h *Hub) HasSubscribers() bool {
	return len(h.listeners(ChannelDevices)) > 0
}

// Notify broadcasts a change snapshot on ChannelDevices, embedded as raw
// JSON. Broadcast marshals before returning, so the caller may reuse
// snapshot afterwards.
func (h *Hub) Notify(_ context.Context, snapshot []byte) {
	if !json.Valid(snapshot) {
		h.logger.Warn("dropping malformed snapshot", "bytes", len(snapshot))
		return
	}
	h.Broadcast(ChannelDevices, json.RawMessage(snapshot))
}

// keepalive returns the ping period, pong wait and read limit, with
// defaults for zero config values.
func (h *Hub) keepalive() (ping, pong time.Duration, limit int64) {
	ping, pong, limit = defaultPingInterval, defaultPongTimeout, defaultMaxMessageSize
	if h.cfg.PingInterval > 0 {
		ping = time.Duration(h.cfg.PingInterval) * time.Second
	}
	if h.cfg.PongTimeout > 0 {
		pong = time.Duration(h.cfg.PongTimeout) * time.Second
	}
	if h.cfg.MaxMessageSize > 0 {
		limit = int64(h.cfg.MaxMessageSize)
	}
	return ping, pong, limit
}

// handleWebSocket upgrades the request and starts the client pumps.
//
// Clients start subscribed to ChannelDevices. The optional channels query
// parameter (comma separated) replaces that default.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	subs := newChannelSet(ChannelDevices)
	if v := r.URL.Query().Get("channels"); v != "" {
		subs = newChannelSet(strings.Split(v, ",")...)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
		subs: subs,
	}
	s.hub.Register(c)

	go c.writePump()
	go c.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	ping, pong, limit := c.hub.keepalive()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pong)) }

	c.conn.SetReadLimit(limit)
	extend() //nolint:errcheck // Failure surfaces on the first read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // Failure surfaces on the next read
		c.dispatch(data)
	}
}

func (c *WSClient) writePump() {
	ping, pong, _ := c.hub.keepalive()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(pong)) //nolint:errcheck // Failure surfaces on write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Closing anyway
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

// dispatch handles one inbound frame.
func (c *WSClient) dispatch(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			c.reply(req.ID, WSTypeError, errorBody("invalid "+req.Type+" payload"))
			return
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(p.Channels)
			c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": p.Channels})
			return
		}
		c.unsubscribe(p.Channels)
		c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": p.Channels})
	default:
		c.reply(req.ID, WSTypeError, errorBody("unknown message type: "+req.Type))
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}

func (c *WSClient) subscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range newChannelSet(channels...) {
		c.subs[ch] = struct{}{}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.subs, strings.TrimSpace(ch))
	}
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[channel]
	return ok
}

// reply queues a response frame for this client.
func (c *WSClient) reply(id, kind string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.enqueue(data)
	}
}

// enqueue drops data when the client is slow or already unregistered.
func (c *WSClient) enqueue(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()

	select {
	case c.send <- data:
	default:
	}
}
