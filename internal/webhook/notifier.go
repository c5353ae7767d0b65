package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultDeliveryTimeout bounds a single POST.
const DefaultDeliveryTimeout = 5 * time.Second

// deliveryHeader carries a unique id per delivery so receivers can drop
// duplicates.
const deliveryHeader = "X-BLEHub-Delivery"

// Notifier posts snapshots to every registered webhook.
type Notifier struct {
	registry *Registry
	client   *http.Client
	logger   Logger
}

// NewNotifier creates a notifier. A nil client gets a default one with
// DefaultDeliveryTimeout.
func NewNotifier(registry *Registry, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultDeliveryTimeout}
	}
	return &Notifier{
		registry: registry,
		client:   client,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// HasSubscribers reports whether any webhook is registered.
func (n *Notifier) HasSubscribers() bool {
	return n.registry.HasCallbacks()
}

// Notify delivers a change snapshot. It satisfies the gateway's change
// sink contract.
func (n *Notifier) Notify(ctx context.Context, snapshot []byte) {
	n.Deliver(ctx, snapshot)
}

// Deliver POSTs payload to every registered URL at once and returns how
// many accepted it, after the slowest has answered or timed out. A non-2xx
// status or a transport error counts as a refusal; success resets the
// refusal count. payload must not change until Deliver returns.
func (n *Notifier) Deliver(ctx context.Context, payload []byte) int {
	var (
		g         errgroup.Group
		delivered atomic.Int32
	)
	for _, e := range n.registry.Entries() {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := n.post(ctx, e.URL, payload)
			n.registry.RecordDelivery(e.URL, err == nil)
			if err != nil {
				n.logger.Warn("webhook delivery failed",
					"url", e.URL,
					"refusals", e.Refusals+1,
					"error", err,
				)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // Workers report through the registry
	return int(delivered.Load())
}

func (n *Notifier) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(deliveryHeader, uuid.NewString())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
