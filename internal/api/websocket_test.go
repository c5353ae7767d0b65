package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/config"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, channels ...string) *WSClient {
	return &WSClient{
		hub:  hub,
		send: make(chan []byte, wsSendBufferSize),
		subs: newChannelSet(channels...),
	}
}

func receive(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return WSMessage{}
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, "hub.health")
	hub.Register(client)

	hub.Broadcast("hub.health", map[string]any{"status": "healthy"})

	if msg := receive(t, client); msg.EventType != "hub.health" || msg.Type != WSTypeEvent {
		t.Errorf("message = %+v", msg)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, "hub.health")
	hub.Register(client)

	hub.Broadcast(ChannelDevices, []int{1})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newTestClient(hub)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_HasSubscribers(t *testing.T) {
	hub := newTestHub(t)
	if hub.HasSubscribers() {
		t.Error("HasSubscribers() = true with no clients")
	}

	other := newTestClient(hub, "hub.health")
	hub.Register(other)
	if hub.HasSubscribers() {
		t.Error("HasSubscribers() = true with no devices subscriber")
	}

	listener := newTestClient(hub, ChannelDevices)
	hub.Register(listener)
	if !hub.HasSubscribers() {
		t.Error("HasSubscribers() = false with a devices subscriber")
	}
}

func TestHub_Notify(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, ChannelDevices)
	hub.Register(client)

	buf := []byte(`[{"address":"AA:BB:CC:DD:EE:01"}]`)
	hub.Notify(context.Background(), buf)
	// The caller's buffer is reused after Notify returns.
	copy(buf, "XXXXXXXX")

	msg := receive(t, client)
	if msg.EventType != ChannelDevices {
		t.Errorf("event_type = %q", msg.EventType)
	}
	devices, ok := msg.Payload.([]any)
	if !ok || len(devices) != 1 {
		t.Fatalf("payload = %#v, want one-element array", msg.Payload)
	}
	if d := devices[0].(map[string]any); d["address"] != "AA:BB:CC:DD:EE:01" {
		t.Errorf("device = %v", d)
	}
}

func TestHub_NotifyDropsMalformed(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, ChannelDevices)
	hub.Register(client)

	hub.Notify(context.Background(), []byte(`[{"address":`))

	select {
	case <-client.send:
		t.Error("malformed snapshot was broadcast")
	case <-time.After(100 * time.Millisecond):
	}
}

// ─── Connections ───────────────────────────────────────────────────

func dialWebSocket(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	deadline := time.Now().Add(time.Second)
	for env.srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_ReceivesChanges(t *testing.T) {
	env := testServer(t)
	ws := dialWebSocket(t, env, "")

	if !env.srv.hub.HasSubscribers() {
		t.Fatal("new client not subscribed to device changes")
	}

	env.srv.hub.Notify(context.Background(), []byte(`[{"address":"AA:BB:CC:DD:EE:01"}]`))

	msg := readMessage(t, ws)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelDevices {
		t.Errorf("message = %+v", msg)
	}
}

func TestWebSocket_ChannelsQuery(t *testing.T) {
	env := testServer(t)
	dialWebSocket(t, env, "?channels=hub.health")

	if env.srv.hub.HasSubscribers() {
		t.Error("channels query should replace the default subscription")
	}
}

func TestWebSocket_SubscribeUnsubscribe(t *testing.T) {
	env := testServer(t)
	ws := dialWebSocket(t, env, "?channels=hub.health")

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDevices}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, ws); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Errorf("subscribe response = %+v", msg)
	}
	if !env.srv.hub.HasSubscribers() {
		t.Error("HasSubscribers() = false after subscribe")
	}

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDevices}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, ws); msg.ID != "unsub-1" {
		t.Errorf("unsubscribe response = %+v", msg)
	}
	if env.srv.hub.HasSubscribers() {
		t.Error("HasSubscribers() = true after unsubscribe")
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := testServer(t)
	ws := dialWebSocket(t, env, "")

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, ws); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("response = %+v, want pong p1", msg)
	}
}

func TestWebSocket_BadMessages(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", "not json"},
		{"unknown type", `{"type":"dance","id":"x"}`},
		{"bad subscribe payload", `{"type":"subscribe","payload":{"channels":"oops"}}`},
		{"missing unsubscribe payload", `{"type":"unsubscribe","id":"u"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			ws := dialWebSocket(t, env, "")

			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.data)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if msg := readMessage(t, ws); msg.Type != WSTypeError {
				t.Errorf("response type = %s, want error", msg.Type)
			}
		})
	}
}

func TestNewChannelSet(t *testing.T) {
	s := newChannelSet(" devices.changed ", "", "hub.health", "hub.health")
	if len(s) != 2 {
		t.Errorf("len = %d, want 2", len(s))
	}
	if _, ok := s[ChannelDevices]; !ok {
		t.Error("channel names not trimmed")
	}
}
