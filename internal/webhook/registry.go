package webhook

import (
	"strings"
	"sync"
	"time"
)

// Registry limits.
const (
	// Capacity is the number of webhook slots.
	Capacity = 5

	// MaxURLLength is the longest URL accepted, in bytes.
	MaxURLLength = 255

	// DefaultTTL is how long an entry survives without re-registration.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxRefusals is the refusal count an entry may reach; one more
	// and it is evicted on the next Check.
	DefaultMaxRefusals = 10
)

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

// Entry is one registered subscriber.
type Entry struct {
	URL           string    `json:"url"`
	LastActivated time.Time `json:"last_activated"`
	Refusals      int       `json:"refusals"`
}

// Registry is the fixed-capacity subscriber list.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.Mutex
	entries [Capacity]Entry
	count   int

	ttl         time.Duration
	maxRefusals int
}

// NewRegistry creates an empty registry. Non-positive limits fall back to
// DefaultTTL and DefaultMaxRefusals.
func NewRegistry(ttl time.Duration, maxRefusals int) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxRefusals <= 0 {
		maxRefusals = DefaultMaxRefusals
	}
	return &Registry{ttl: ttl, maxRefusals: maxRefusals}
}

// Add registers url or refreshes it.
//
// A known URL gets its activation time set to now and its refusal count
// reset. A new URL is appended. Returns false for an empty or oversized
// URL, or when every slot is taken.
func (r *Registry) Add(url string, now time.Time) bool {
	if url == "" || len(url) > MaxURLLength {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(url); i >= 0 {
		r.entries[i].LastActivated = now
		r.entries[i].Refusals = 0
		return true
	}

	if r.count >= Capacity {
		return false
	}

	r.entries[r.count] = Entry{URL: url, LastActivated: now}
	r.count++
	return true
}

// Find returns the first URL containing base, so callers can match an
// endpoint registered with a dynamic path suffix.
func (r *Registry) Find(base string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.count; i++ {
		if strings.Contains(r.entries[i].URL, base) {
			return r.entries[i].URL, true
		}
	}
	return "", false
}

// Get returns the URL in slot index.
func (r *Registry) Get(index int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= r.count {
		return "", false
	}
	return r.entries[index].URL, true
}

// Entries returns a copy of the registered entries in slot order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, r.count)
	copy(out, r.entries[:r.count])
	return out
}

// Remove deletes slot index, shifting later entries down.
func (r *Registry) Remove(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= r.count {
		return false
	}
	r.removeAt(index)
	return true
}

// RemoveURL deletes the entry with exactly this URL.
func (r *Registry) RemoveURL(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(url)
	if i < 0 {
		return false
	}
	r.removeAt(i)
	return true
}

// AddRefusal counts one failed delivery against slot index.
func (r *Registry) AddRefusal(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= r.count {
		return false
	}
	r.entries[index].Refusals++
	return true
}

// ResetRefusal clears the failed delivery count of slot index.
func (r *Registry) ResetRefusal(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= r.count {
		return false
	}
	r.entries[index].Refusals = 0
	return true
}

// RecordDelivery applies a delivery outcome to the entry with this URL.
// Slots may shift between a delivery and its outcome, so the notifier
// reports by URL. Returns false when the URL is no longer registered.
func (r *Registry) RecordDelivery(url string, ok bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(url)
	if i < 0 {
		return false
	}
	if ok {
		r.entries[i].Refusals = 0
	} else {
		r.entries[i].Refusals++
	}
	return true
}

// Check evicts idle and refusing entries and returns how many were removed.
func (r *Registry) Check(now time.Time) int {
	return len(r.Expire(now))
}

// Expire evicts every entry idle for longer than the TTL or refused more
// than the refusal limit, and returns the evicted entries. Remaining
// entries keep their relative order.
func (r *Registry) Expire(now time.Time) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []Entry
	for i := 0; i < r.count; i++ {
		e := r.entries[i]
		if now.Sub(e.LastActivated) <= r.ttl && e.Refusals <= r.maxRefusals {
			continue
		}
		evicted = append(evicted, e)
		r.removeAt(i)
		i-- // the next entry now sits in slot i
	}
	return evicted
}

// Count returns the number of registered entries.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// HasCallbacks reports whether anyone is subscribed.
func (r *Registry) HasCallbacks() bool {
	return r.Count() > 0
}

// TTL returns the idle expiry window.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// indexOf returns the slot holding url, or -1. Caller must hold mu.
func (r *Registry) indexOf(url string) int {
	for i := 0; i < r.count; i++ {
		if r.entries[i].URL == url {
			return i
		}
	}
	return -1
}

// removeAt shifts entries after index down by one. Caller must hold mu.
func (r *Registry) removeAt(index int) {
	copy(r.entries[index:r.count], r.entries[index+1:r.count])
	r.count--
	r.entries[r.count] = Entry{}
}
