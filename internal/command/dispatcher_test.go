package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockPublisher records published messages.
type mockPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, publishedMessage{topic, payload, qos, retained})
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func newTestDispatcher(pub Publisher) *Dispatcher {
	d := NewDispatcher(NewQueue(), DispatcherConfig{
		Publisher: pub,
		Topic:     func(a string) string { return "test/command/" + a },
		Interval:  10 * time.Millisecond,
	})
	d.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return d
}

// ─── Submit ────────────────────────────────────────────────────────

func TestSubmit(t *testing.T) {
	d := newTestDispatcher(&mockPublisher{})

	got, err := d.Submit("aa:bb:cc:dd:ee:01", "87,1,1", "caller")
	if err != nil || got != ResultQueued {
		t.Fatalf("Submit() = %s, %v, want queued", got, err)
	}

	// Same command with a differently cased address is a duplicate.
	got, err = d.Submit("AA:BB:CC:DD:EE:01", "87, 1, 1", "other")
	if err != nil || got != ResultDuplicate {
		t.Errorf("Submit(duplicate) = %s, %v, want duplicate", got, err)
	}
	if d.Queue().Count() != 1 {
		t.Errorf("Count() = %d, want 1", d.Queue().Count())
	}

	e, _ := d.Queue().Pop()
	if e.Address != "AA:BB:CC:DD:EE:01" {
		t.Errorf("queued address = %s, want canonical upper case", e.Address)
	}
}

func TestSubmitErrors(t *testing.T) {
	d := newTestDispatcher(&mockPublisher{})

	tests := []struct {
		name    string
		address string
		payload string
		wantErr error
	}{
		{"bad address", "living-room", "1", ErrInvalidAddress},
		{"bad payload", "AA:BB:CC:DD:EE:01", "1,300", ErrInvalidPayload},
		{"empty payload", "AA:BB:CC:DD:EE:01", "", ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Submit(tt.address, tt.payload, ""); !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	for i := 0; i < Capacity; i++ {
		d.Queue().Push("AA:BB:CC:DD:EE:02", []byte{byte(i)}, "")
	}
	if _, err := d.Submit("AA:BB:CC:DD:EE:03", "1", ""); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit() on full queue error = %v, want ErrQueueFull", err)
	}
}

func TestHandleRequest(t *testing.T) {
	d := newTestDispatcher(&mockPublisher{})

	req := []byte(`{"address":"AA:BB:CC:DD:EE:04","payload":"87,1,2","reply_to":"http://10.0.0.9/cb"}`)
	if err := d.HandleRequest("blehub/request/command", req); err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}
	e, ok := d.Queue().Pop()
	if !ok || e.ReplyTo != "http://10.0.0.9/cb" || FormatPayload(e.Bytes()) != "87,1,2" {
		t.Errorf("queued = %+v, want the request", e)
	}

	if err := d.HandleRequest("blehub/request/command", []byte("{")); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("HandleRequest(bad json) error = %v, want ErrInvalidRequest", err)
	}
	if err := d.HandleRequest("blehub/request/command", []byte(`{"address":"x","payload":"1"}`)); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("HandleRequest(bad address) error = %v, want ErrInvalidAddress", err)
	}
}

// ─── Drain ─────────────────────────────────────────────────────────

func TestDrain(t *testing.T) {
	pub := &mockPublisher{}
	d := newTestDispatcher(pub)
	d.Submit("AA:BB:CC:DD:EE:05", "87,1", "r1") //nolint:errcheck // test setup
	d.Submit("AA:BB:CC:DD:EE:06", "87,2", "")   //nolint:errcheck // test setup

	if got := d.Drain(); got != 2 {
		t.Fatalf("Drain() = %d, want 2", got)
	}
	if d.Queue().Count() != 0 {
		t.Errorf("Count() after drain = %d, want 0", d.Queue().Count())
	}

	first := pub.messages[0]
	if first.topic != "test/command/AA:BB:CC:DD:EE:05" {
		t.Errorf("topic = %s", first.topic)
	}
	if first.qos != 1 || first.retained {
		t.Errorf("qos = %d retained = %v, want 1 false", first.qos, first.retained)
	}

	var msg Message
	if err := json.Unmarshal(first.payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ID == "" {
		t.Error("message ID empty")
	}
	if len(msg.Payload) != 2 || msg.Payload[0] != 87 || msg.Payload[1] != 1 {
		t.Errorf("payload = %v, want [87 1]", msg.Payload)
	}
	if msg.ReplyTo != "r1" {
		t.Errorf("reply_to = %q, want r1", msg.ReplyTo)
	}

	var second Message
	json.Unmarshal(pub.messages[1].payload, &second) //nolint:errcheck // checked above
	if second.ID == msg.ID {
		t.Error("two commands share an ID")
	}
}

func TestDrainBrokerDownKeepsCommands(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not connected")}
	d := newTestDispatcher(pub)
	for i := range 5 {
		if _, err := d.Submit(fmt.Sprintf("AA:BB:CC:DD:EE:%02X", i), "1", ""); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	for range 3 {
		if got := d.Drain(); got != 0 {
			t.Errorf("Drain() = %d, want 0", got)
		}
	}
	if got := d.Queue().Count(); got != 5 {
		t.Fatalf("Count() = %d, want 5 (commands kept while the broker is down)", got)
	}

	// Broker back: everything goes out, oldest first.
	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	if got := d.Drain(); got != 5 {
		t.Fatalf("Drain() = %d, want 5", got)
	}
	if d.Queue().Count() != 0 {
		t.Errorf("Count() = %d, want 0", d.Queue().Count())
	}
	var first Message
	if err := json.Unmarshal(pub.messages[0].payload, &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.Address != "AA:BB:CC:DD:EE:00" {
		t.Errorf("first published = %s, want AA:BB:CC:DD:EE:00", first.Address)
	}
}

func TestSubmitConcurrentDuplicates(t *testing.T) {
	d := newTestDispatcher(&mockPublisher{})

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan Result, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := d.Submit("AA:BB:CC:DD:EE:09", "87,1", "")
			if err != nil {
				t.Errorf("Submit() error = %v", err)
			}
			results <- r
		}()
	}
	wg.Wait()
	close(results)

	queued := 0
	for r := range results {
		if r == ResultQueued {
			queued++
		}
	}
	if queued != 1 || d.Queue().Count() != 1 {
		t.Errorf("queued = %d, Count() = %d, want 1 and 1", queued, d.Queue().Count())
	}
}

func TestStartStop(t *testing.T) {
	pub := &mockPublisher{}
	d := newTestDispatcher(pub)
	d.Start(context.Background())

	d.Submit("AA:BB:CC:DD:EE:08", "1", "") //nolint:errcheck // test setup

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()
	d.Stop() // idempotent

	if pub.count() != 1 {
		t.Errorf("published %d messages, want 1", pub.count())
	}
}
