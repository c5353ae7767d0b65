package command

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Queue limits.
const (
	// Capacity is the number of pending commands held.
	Capacity = 20

	// PayloadCapacity is the storage reserved per command payload.
	PayloadCapacity = 20

	// MaxPayloadValues is how many values ParsePayload reads.
	MaxPayloadValues = 10
)

// Entry is one pending command.
type Entry struct {
	Address string
	ReplyTo string
	Payload [PayloadCapacity]byte
	Len     uint8
}

// Bytes returns the valid payload bytes.
func (e *Entry) Bytes() []byte {
	return e.Payload[:e.Len]
}

// Queue is a fixed-capacity FIFO ring buffer.
//
// All public methods are thread-safe.
type Queue struct {
	mu      sync.Mutex
	entries [Capacity]Entry
	head    int // next slot to write
	tail    int // next slot to read
	count   int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Find reports whether an identical command is already pending. Addresses
// compare case-insensitively.
func (q *Queue) Find(address string, payload []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.find(address, payload)
}

// Push appends a command. It returns false when the queue is full or the
// payload exceeds PayloadCapacity.
func (q *Queue) Push(address string, payload []byte, replyTo string) bool {
	if len(payload) > PayloadCapacity {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.push(address, payload, replyTo)
}

// PushUnique is Find and Push under one lock, so two identical concurrent
// submissions queue the command once. duplicate is true when an identical
// command was already pending; queued is false then, and also when Push
// would have failed.
func (q *Queue) PushUnique(address string, payload []byte, replyTo string) (queued, duplicate bool) {
	if len(payload) > PayloadCapacity {
		return false, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.find(address, payload) {
		return false, true
	}
	return q.push(address, payload, replyTo), false
}

func (q *Queue) find(address string, payload []byte) bool {
	for i, slot := 0, q.tail; i < q.count; i, slot = i+1, (slot+1)%Capacity {
		e := &q.entries[slot]
		if strings.EqualFold(e.Address, address) && bytes.Equal(e.Bytes(), payload) {
			return true
		}
	}
	return false
}

func (q *Queue) push(address string, payload []byte, replyTo string) bool {
	if q.count >= Capacity {
		return false
	}

	e := &q.entries[q.head]
	e.Address = address
	e.ReplyTo = replyTo
	e.Len = uint8(copy(e.Payload[:], payload)) //nolint:gosec // bounded by PayloadCapacity
	q.head = (q.head + 1) % Capacity
	q.count++
	return true
}

// Peek returns the oldest command without removing it.
func (q *Queue) Peek() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Entry{}, false
	}
	return q.entries[q.tail], true
}

// Pop removes and returns the oldest command.
func (q *Queue) Pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Entry{}, false
	}

	e := q.entries[q.tail]
	q.entries[q.tail] = Entry{}
	q.tail = (q.tail + 1) % Capacity
	q.count--
	return e, true
}

// Count returns the number of pending commands.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// ParsePayload parses comma separated decimal byte values such as
// "1,2,255". Whitespace around values is ignored. Parsing stops after
// MaxPayloadValues values; anything after that is not inspected.
func ParsePayload(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	out := make([]byte, 0, MaxPayloadValues)
	rest := text
	for len(out) < MaxPayloadValues {
		token, after, more := strings.Cut(rest, ",")
		v, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, token)
		}
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: %d is outside 0-255", ErrInvalidPayload, v)
		}
		out = append(out, byte(v))
		if !more {
			break
		}
		rest = after
	}
	return out, nil
}

// FormatPayload renders bytes in the form ParsePayload accepts.
func FormatPayload(payload []byte) string {
	var b strings.Builder
	for i, v := range payload {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	return b.String()
}
