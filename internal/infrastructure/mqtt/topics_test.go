package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/config"
)

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	const mac = "AA:BB:CC:DD:EE:01"
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Advert", Topics{}.Advert(mac), "blehub/advert/AA:BB:CC:DD:EE:01"},
		{"DeviceState", Topics{}.DeviceState(mac), "blehub/state/AA:BB:CC:DD:EE:01"},
		{"Command", Topics{}.Command(mac), "blehub/command/AA:BB:CC:DD:EE:01"},
		{"CommandRequest", Topics{}.CommandRequest(), "blehub/request/command"},
		{"Snapshot", Topics{}.Snapshot(), "blehub/snapshot"},
		{"Health", Topics{}.Health(), "blehub/health"},
		{"Status", Topics{}.Status(), "blehub/status"},
		{"AllAdverts", Topics{}.AllAdverts(), "blehub/advert/+"},
		{"AllDeviceStates", Topics{}.AllDeviceStates(), "blehub/state/+"},
		{"AllTopics", Topics{}.AllTopics(), "blehub/#"},
		{"custom prefix", NewTopics("site7/ble").Health(), "site7/ble/health"},
		{"trimmed prefix", NewTopics("/site7/").Advert(mac), "site7/advert/AA:BB:CC:DD:EE:01"},
		{"empty prefix", NewTopics("").Status(), "blehub/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLastLevel(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"blehub/advert/AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:01"},
		{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:01"},
		{"blehub/advert/", ""},
	}
	for _, tt := range tests {
		if got := LastLevel(tt.topic); got != tt.want {
			t.Errorf("LastLevel(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "hub-1"},
		Auth:   config.MQTTAuthConfig{Username: "hub", Password: "secret"},
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 2,
			MaxDelay:     30,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v, want ssl://broker.local:8883", opts.Servers)
	}
	if opts.ClientID != "hub-1" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "hub" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS not configured")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false")
	}
}

func TestBuildClientOptions_Plain(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: "hub"},
	})
	if opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers[0] = %s", opts.Servers[0])
	}
	if opts.Username != "" {
		t.Error("anonymous config set a username")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{})
	configureLWT(opts, NewTopics("site7"), "hub-1")

	if !opts.WillEnabled || opts.WillTopic != "site7/status" {
		t.Errorf("will = %v %q, want site7/status", opts.WillEnabled, opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Error("will must be retained at QoS 1")
	}

	var will map[string]string
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if will["status"] != "offline" || will["client_id"] != "hub-1" {
		t.Errorf("will = %v", will)
	}
}

func TestStatusPayload(t *testing.T) {
	tests := []struct {
		name   string
		status string
		reason string
	}{
		{"online", statusOnline, ""},
		{"shutdown", statusOffline, reasonShutdown},
		{"crash", statusOffline, reasonUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg StatusMessage
			if err := json.Unmarshal(statusPayload(tt.status, "hub-1", tt.reason), &msg); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if msg.Status != tt.status || msg.Reason != tt.reason || msg.ClientID != "hub-1" {
				t.Errorf("message = %+v", msg)
			}
			if msg.Timestamp.IsZero() {
				t.Error("timestamp not set")
			}
		})
	}

	if p := string(statusPayload(statusOnline, "hub-1", "")); strings.Contains(p, "reason") {
		t.Errorf("online payload carries a reason: %s", p)
	}
}

func TestAwait(t *testing.T) {
	done := &fakeToken{}
	if err := await(done, time.Millisecond, ErrPublishFailed); err != nil {
		t.Errorf("await(done) = %v", err)
	}

	failed := &fakeToken{err: errors.New("not authorised")}
	if err := await(failed, time.Millisecond, ErrPublishFailed); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("await(failed) = %v, want ErrPublishFailed", err)
	}

	stuck := &fakeToken{pending: true}
	err := await(stuck, time.Millisecond, ErrSubscribeFailed)
	if !errors.Is(err, ErrSubscribeFailed) || !errors.Is(err, ErrTimeout) {
		t.Errorf("await(stuck) = %v, want ErrSubscribeFailed and ErrTimeout", err)
	}
}

// fakeToken is a paho token that is already complete, or never completes.
type fakeToken struct {
	pending bool
	err     error
}

func (f *fakeToken) Wait() bool                     { return !f.pending }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return !f.pending }
func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !f.pending {
		close(ch)
	}
	return ch
}
func (f *fakeToken) Error() error { return f.err }

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"bad qos", "blehub/x", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "blehub/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "blehub/x", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subs: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := client.Subscribe("blehub/advert/+", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := client.Subscribe("blehub/advert/+", 0, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Error("failed subscription was tracked")
	}
}
