package registry

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-blehub/internal/switchbot"
)

// Capacity is the maximum number of devices tracked at once.
const Capacity = 50

// MACLength is the length of a colon separated MAC address.
const MACLength = 17

// Logger defines the logging interface used by the Registry.
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

// Outcome is the result of an Ingest call.
type Outcome int

const (
	// Rejected means the advertisement was not stored: invalid address,
	// size mismatch, unknown model (when not stored), or a full registry.
	Rejected Outcome = iota
	// Added means a new record was created.
	Added
	// Updated means an existing record took a semantically new frame.
	Updated
	// Unchanged means the frame matched the stored one under the model's
	// comparison mask. Nothing was modified.
	Unchanged
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "rejected"
	}
}

// Record is one stored device.
type Record struct {
	MAC     [MACLength]byte
	RSSI    int
	Raw     [switchbot.FrameCapacity]byte
	Len     uint8
	Changed bool
}

// Address returns the canonical upper case MAC address.
func (r Record) Address() string {
	return string(r.MAC[:])
}

// Frame returns the stored frame bytes.
func (r Record) Frame() []byte {
	return r.Raw[:r.Len]
}

// Model returns the stored discriminant.
func (r Record) Model() switchbot.Model {
	if r.Len == 0 {
		return 0
	}
	return switchbot.Model(r.Raw[0])
}

// Decode decodes the stored frame.
func (r Record) Decode() (switchbot.Decoded, error) {
	return switchbot.DecodeFrame(r.Frame())
}

// Options configures a Registry.
type Options struct {
	// StoreUnknown keeps advertisements with an unrecognised discriminant
	// as opaque frames so they show up in snapshots.
	StoreUnknown bool
}

// DefaultOptions returns the options used by the hub.
func DefaultOptions() Options {
	return Options{StoreUnknown: true}
}

// Registry is the fixed-capacity device store.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.Mutex
	records [Capacity]Record
	count   int
	changed bool

	opts   Options
	logger Logger
}

// New creates an empty registry.
func New(opts Options) *Registry {
	return &Registry{
		opts:   opts,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Ingest stores one advertisement.
//
// Parameters:
//   - mac: device address in AA:BB:CC:DD:EE:FF form (any case)
//   - rssi: signal strength of this observation
//   - serviceData: service data payload, byte 0 is the model
//   - manufData: manufacturer data payload, nil when absent
//
// Returns the outcome. Rejections are logged at debug level.
func (r *Registry) Ingest(mac string, rssi int, serviceData, manufData []byte) Outcome {
	key, err := ParseMAC(mac)
	if err != nil {
		r.logger.Debug("advertisement rejected", "mac", mac, "error", err)
		return Rejected
	}

	frame, err := r.pack(serviceData, manufData)
	if err != nil {
		r.logger.Debug("advertisement rejected", "mac", mac, "error", err)
		return Rejected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(&key); i >= 0 {
		rec := &r.records[i]
		if switchbot.Equivalent(rec.Raw[:rec.Len], frame.Bytes()) {
			return Unchanged
		}
		rec.RSSI = rssi
		rec.Len = uint8(copy(rec.Raw[:], frame.Bytes())) //nolint:gosec // bounded by FrameCapacity
		rec.Changed = true
		r.changed = true
		return Updated
	}

	if r.count >= Capacity {
		r.logger.Debug("advertisement rejected", "mac", mac, "reason", "registry full")
		return Rejected
	}

	rec := &r.records[r.count]
	rec.MAC = key
	rec.RSSI = rssi
	rec.Len = uint8(copy(rec.Raw[:], frame.Bytes())) //nolint:gosec // bounded by FrameCapacity
	rec.Changed = true
	r.count++
	r.changed = true
	return Added
}

// pack turns an advertisement into a storable frame.
func (r *Registry) pack(serviceData, manufData []byte) (switchbot.Frame, error) {
	if len(serviceData) == 0 {
		return switchbot.Frame{}, switchbot.ErrEmptyPayload
	}

	model := switchbot.Model(serviceData[0])
	if !model.Known() {
		if !r.opts.StoreUnknown {
			return switchbot.Frame{}, fmt.Errorf("%w: %s", switchbot.ErrUnknownModel, model)
		}
		return switchbot.PackOpaque(serviceData)
	}
	return switchbot.Pack(model, serviceData, manufData)
}

// indexOf returns the slot holding key, or -1. Caller must hold mu.
func (r *Registry) indexOf(key *[MACLength]byte) int {
	for i := 0; i < r.count; i++ {
		if r.records[i].MAC == *key {
			return i
		}
	}
	return -1
}

// Get returns a copy of the record at index.
func (r *Registry) Get(index int) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= r.count {
		return Record{}, false
	}
	return r.records[index], true
}

// Find returns the slot of a device. Lookup is case-insensitive.
func (r *Registry) Find(mac string) (int, bool) {
	key, err := ParseMAC(mac)
	if err != nil {
		return 0, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(&key)
	return i, i >= 0
}

// Count returns the number of stored devices.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// HasChanged reports whether any record changed since the flags were last
// cleared.
func (r *Registry) HasChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

// ClearChanged resets every record flag and the registry flag. Frames are
// left untouched.
func (r *Registry) ClearChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.count; i++ {
		r.records[i].Changed = false
	}
	r.changed = false
}

// Snapshot visits records in slot order while holding the registry lock.
//
// With onlyChanged set, the registry flag is cleared up front, unchanged
// records are skipped, and each record's flag is cleared once visit accepts
// it. visit returns false to stop; if changed records remain unvisited at
// that point the registry flag is raised again so they are delivered next
// time.
//
// visit must not call back into the registry.
func (r *Registry) Snapshot(onlyChanged bool, visit func(index int, rec Record) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if onlyChanged {
		r.changed = false
	}

	for i := 0; i < r.count; i++ {
		if onlyChanged && !r.records[i].Changed {
			continue
		}
		if !visit(i, r.records[i]) {
			if onlyChanged {
				r.changed = r.anyChangedFrom(i)
			}
			return
		}
		if onlyChanged {
			r.records[i].Changed = false
		}
	}
}

// anyChangedFrom reports whether a record at or after index is flagged.
// Caller must hold mu.
func (r *Registry) anyChangedFrom(index int) bool {
	for i := index; i < r.count; i++ {
		if r.records[i].Changed {
			return true
		}
	}
	return false
}

// ParseMAC validates a colon separated MAC address and returns its upper
// case form. It does not allocate.
func ParseMAC(s string) ([MACLength]byte, error) {
	var out [MACLength]byte
	if len(s) != MACLength {
		return out, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	for i := 0; i < MACLength; i++ {
		c := s[i]
		if i%3 == 2 {
			if c != ':' {
				return out, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
			}
			out[i] = c
			continue
		}
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F':
			out[i] = c
		case c >= 'a' && c <= 'f':
			out[i] = c - ('a' - 'A')
		default:
			return out, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
		}
	}
	return out, nil
}
