package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/registry"
)

// DefaultHealthInterval is used when HealthReporterConfig.Interval is zero.
const DefaultHealthInterval = 30 * time.Second

const defaultHealthTopic = "blehub/health"

// HealthPublisher is the MQTT side of health reporting. Satisfied by
// *mqtt.Client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HubMetrics receives the numeric health values. Optional.
type HubMetrics interface {
	WriteHubMetric(hubID, metric string, value float64)
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	HubID   string
	Version string

	// Interval between reports. Default: DefaultHealthInterval.
	Interval time.Duration

	// Topic defaults to blehub/health.
	Topic string

	Publisher HealthPublisher

	// Metrics mirrors the counters to the time-series store.
	Metrics HubMetrics

	// Counters. Any may be nil.
	Devices    func() int
	Webhooks   func() int
	Commands   func() int
	Statistics func() Statistics
}

// HealthReporter publishes a retained HealthMessage on a fixed period, plus
// "starting" and "stopping" markers around the hub's lifetime.
type HealthReporter struct {
	cfg     HealthReporterConfig
	started time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter applies defaults to cfg and returns an idle reporter.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.Topic == "" {
		cfg.Topic = defaultHealthTopic
	}
	return &HealthReporter{cfg: cfg, started: time.Now(), done: make(chan struct{})}
}

// Start reports immediately and then every Interval until ctx ends or
// Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := time.NewTicker(h.cfg.Interval)
		defer ticker.Stop()

		for {
			h.report()
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop waits for the report loop to exit and then publishes "stopping".
// Safe to call more than once.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.publish(HealthStopping, "") //nolint:errcheck // Shutting down
	})
}

func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes the "starting" marker.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "hub starting")
}

// PublishNow publishes the current status.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.determineStatus())
}

// Snapshot returns the message PublishNow would send.
func (h *HealthReporter) Snapshot() HealthMessage {
	return h.message(h.determineStatus())
}

func (h *HealthReporter) report() {
	if err := h.PublishNow(); err != nil {
		h.loggerMu.RLock()
		logger := h.logger
		h.loggerMu.RUnlock()
		if logger != nil {
			logger.Error("failed to publish health", "error", err)
		}
	}
	h.writeMetrics()
}

// determineStatus is degraded while the broker is unreachable or the device
// table has no free slot.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	switch {
	case h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected():
		return HealthDegraded, "MQTT disconnected"
	case count(h.cfg.Devices) >= registry.Capacity:
		return HealthDegraded, "device registry full"
	default:
		return HealthHealthy, ""
	}
}

func count(fn func() int) int {
	if fn == nil {
		return 0
	}
	return fn()
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Hub:            h.cfg.HubID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.cfg.Version,
		UptimeSeconds:  int64(time.Since(h.started) / time.Second),
		Devices:        count(h.cfg.Devices),
		Webhooks:       count(h.cfg.Webhooks),
		QueuedCommands: count(h.cfg.Commands),
		Reason:         reason,
	}
	if h.cfg.Statistics != nil {
		stats := h.cfg.Statistics()
		msg.Statistics = &stats
	}
	return msg
}

// publish sends a retained QoS 1 health message. Without a publisher it
// does nothing.
func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}

func (h *HealthReporter) writeMetrics() {
	m := h.cfg.Metrics
	if m == nil {
		return
	}
	msg := h.message(HealthHealthy, "")
	for name, v := range map[string]int64{
		"devices":         int64(msg.Devices),
		"webhooks":        int64(msg.Webhooks),
		"queued_commands": int64(msg.QueuedCommands),
		"uptime_seconds":  msg.UptimeSeconds,
	} {
		m.WriteHubMetric(h.cfg.HubID, name, float64(v))
	}
}
