package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-blehub/internal/registry"
)

// DefaultDrainInterval is how often the dispatcher empties the queue.
const DefaultDrainInterval = 250 * time.Millisecond

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher is the MQTT side of the dispatcher.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Request is an inbound command request.
// Topic: blehub/request/command
type Request struct {
	// Address is the target device MAC.
	Address string `json:"address"`

	// Payload is the byte list as text, e.g. "87,1,1".
	Payload string `json:"payload"`

	// ReplyTo identifies the caller to answer once the command ran.
	ReplyTo string `json:"reply_to,omitempty"`
}

// Message is published for the BLE transport to execute.
// Topic: blehub/command/{address}
// QoS: 1, Retained: No
type Message struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Payload   []int     `json:"payload"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result reports what Submit did with a request.
type Result string

const (
	// ResultQueued means the command was added to the queue.
	ResultQueued Result = "queued"

	// ResultDuplicate means an identical command was already pending.
	ResultDuplicate Result = "duplicate"
)

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	// Publisher sends command messages.
	Publisher Publisher

	// Topic builds the command topic for a device address.
	Topic func(address string) string

	// QoS for command messages. Default: 1.
	QoS byte

	// Interval between queue drains. Default: DefaultDrainInterval.
	Interval time.Duration
}

// Dispatcher moves commands from requests into the queue and from the
// queue onto MQTT.
type Dispatcher struct {
	queue    *Queue
	pub      Publisher
	topic    func(string) string
	qos      byte
	interval time.Duration
	logger   Logger
	now      func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher for queue.
func NewDispatcher(queue *Queue, cfg DispatcherConfig) *Dispatcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	qos := cfg.QoS
	if qos == 0 {
		qos = 1
	}
	topic := cfg.Topic
	if topic == nil {
		topic = func(address string) string { return "blehub/command/" + address }
	}

	return &Dispatcher{
		queue:    queue,
		pub:      cfg.Publisher,
		topic:    topic,
		qos:      qos,
		interval: interval,
		logger:   noopLogger{},
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Queue returns the underlying queue.
func (d *Dispatcher) Queue() *Queue {
	return d.queue
}

// Submit validates a request and queues it unless an identical command is
// already pending.
//
// Returns:
//   - Result: ResultQueued or ResultDuplicate
//   - error: ErrInvalidAddress, ErrInvalidPayload or ErrQueueFull
func (d *Dispatcher) Submit(address, payload, replyTo string) (Result, error) {
	mac, err := registry.ParseMAC(address)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	data, err := ParsePayload(payload)
	if err != nil {
		return "", err
	}

	canonical := string(mac[:])
	queued, duplicate := d.queue.PushUnique(canonical, data, replyTo)
	if duplicate {
		d.logger.Debug("duplicate command suppressed", "address", canonical, "payload", payload)
		return ResultDuplicate, nil
	}
	if !queued {
		return "", ErrQueueFull
	}

	d.logger.Debug("command queued", "address", canonical, "payload", payload, "pending", d.queue.Count())
	return ResultQueued, nil
}

// HandleRequest is the MQTT handler for the request topic.
func (d *Dispatcher) HandleRequest(topic string, payload []byte) error {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if _, err := d.Submit(req.Address, req.Payload, req.ReplyTo); err != nil {
		d.logger.Warn("command request rejected", "topic", topic, "address", req.Address, "error", err)
		return err
	}
	return nil
}

// Start begins draining the queue until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.loop(ctx)
}

// Stop halts the drain loop. Pending commands stay queued.
// Safe to call multiple times.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			d.Drain()
		}
	}
}

// Drain publishes pending commands oldest first and removes each once the
// broker has accepted it. The first publish failure ends the drain with that
// command still at the head, so nothing is lost while the broker is down.
// Returns the number published.
//
// Drain is the queue's only consumer: Peek and Pop see the same entry.
func (d *Dispatcher) Drain() int {
	published := 0
	for {
		e, ok := d.queue.Peek()
		if !ok {
			return published
		}

		msg := Message{
			ID:        uuid.NewString(),
			Address:   e.Address,
			Payload:   toInts(e.Bytes()),
			ReplyTo:   e.ReplyTo,
			Timestamp: d.now().UTC(),
		}
		data, err := json.Marshal(msg)
		if err != nil {
			d.logger.Error("marshalling command", "address", e.Address, "error", err)
			d.queue.Pop()
			continue
		}

		if err := d.pub.Publish(d.topic(e.Address), data, d.qos, false); err != nil {
			d.logger.Warn("command publish failed, will retry",
				"address", e.Address, "pending", d.queue.Count(), "error", err)
			return published
		}
		d.queue.Pop()
		published++
	}
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
