package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-blehub/internal/registry"
	"github.com/nerrad567/gray-logic-blehub/internal/snapshot"
)

const (
	// DefaultPublishInterval is how often pending changes are pushed.
	DefaultPublishInterval = time.Second

	// DefaultBufferSize is the snapshot buffer used when none is configured.
	DefaultBufferSize = 8192

	// stateQoS is used for retained device state messages.
	stateQoS = 1
)

// Logger defines the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the subset of the MQTT client the gateway needs.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Telemetry receives decoded readings and hub metrics.
// Satisfied by *influxdb.Client. Optional.
type Telemetry interface {
	WriteReading(r influxdb.Reading)
	WriteHubMetric(hubID, metric string, value float64)
}

// ChangeSink receives change snapshots from the publish loop.
//
// The snapshot slice is only valid for the duration of Notify; sinks that
// keep it must copy.
type ChangeSink interface {
	// HasSubscribers reports whether anyone would receive a snapshot now.
	// Change flags are only consumed when at least one sink says yes.
	HasSubscribers() bool

	// Notify delivers one snapshot.
	Notify(ctx context.Context, snapshot []byte)
}

// Sweeper expires stale subscriptions. Satisfied by *webhook.Service.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) int
}

// Options configures a Gateway.
type Options struct {
	// Registry stores device records. Required.
	Registry *registry.Registry

	// Encoder renders change snapshots. Required.
	Encoder *snapshot.Encoder

	// MQTT receives adverts and carries state. Required.
	MQTT MQTTClient

	// Topics builds the topic names.
	Topics mqtt.Topics

	// Telemetry is optional.
	Telemetry Telemetry

	// Sinks receive change snapshots.
	Sinks []ChangeSink

	// Sweeper runs after every publish tick. Optional.
	Sweeper Sweeper

	// PublishInterval between change pushes. Default: DefaultPublishInterval.
	PublishInterval time.Duration

	// BufferSize is the snapshot buffer capacity. Default: DefaultBufferSize.
	BufferSize int

	// Health configures the health reporter. Publisher, Topic, Devices and
	// Statistics are filled in by the gateway.
	Health HealthReporterConfig

	// Logger is optional.
	Logger Logger
}

// Gateway connects the BLE radio feed to the device registry and pushes
// changes out to MQTT, webhooks and websocket clients.
//
// Thread Safety: All methods are safe for concurrent use.
type Gateway struct {
	registry  *registry.Registry
	encoder   *snapshot.Encoder
	mqtt      MQTTClient
	topics    mqtt.Topics
	telemetry Telemetry
	sweeper   Sweeper
	health    *HealthReporter
	interval  time.Duration
	now       func() time.Time

	sinks   []ChangeSink
	sinksMu sync.RWMutex

	// buf is reused by every publish; bufMu serialises encoders.
	buf   []byte
	bufMu sync.Mutex

	received  atomic.Uint64
	rejected  atomic.Uint64
	added     atomic.Uint64
	updated   atomic.Uint64
	unchanged atomic.Uint64
	published atomic.Uint64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewGateway creates a gateway. Call Start to subscribe and begin pushing.
//
// Parameters:
//   - opts: Collaborators and tuning
//
// Returns:
//   - *Gateway: Ready to start
//   - error: ErrMissingDependency if a required collaborator is nil
func NewGateway(opts Options) (*Gateway, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	}
	if opts.Encoder == nil {
		return nil, fmt.Errorf("%w: encoder", ErrMissingDependency)
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	}

	interval := opts.PublishInterval
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	topics := opts.Topics
	if topics.Prefix == "" {
		topics = mqtt.NewTopics(mqtt.DefaultTopicPrefix)
	}

	g := &Gateway{
		registry:  opts.Registry,
		encoder:   opts.Encoder,
		mqtt:      opts.MQTT,
		topics:    topics,
		telemetry: opts.Telemetry,
		sweeper:   opts.Sweeper,
		interval:  interval,
		now:       time.Now,
		sinks:     append([]ChangeSink(nil), opts.Sinks...),
		buf:       make([]byte, size),
		done:      make(chan struct{}),
		logger:    opts.Logger,
	}

	hc := opts.Health
	hc.Publisher = opts.MQTT
	hc.Topic = topics.Health()
	hc.Devices = opts.Registry.Count
	hc.Statistics = g.Stats
	if hc.Metrics == nil && opts.Telemetry != nil {
		hc.Metrics = opts.Telemetry
	}
	g.health = NewHealthReporter(hc)
	if opts.Logger != nil {
		g.health.SetLogger(opts.Logger)
	}

	return g, nil
}

// SetLogger sets the logger for the gateway and its health reporter.
func (g *Gateway) SetLogger(logger Logger) {
	g.loggerMu.Lock()
	g.logger = logger
	g.loggerMu.Unlock()
	g.health.SetLogger(logger)
}

// AddSink registers another change sink.
func (g *Gateway) AddSink(sink ChangeSink) {
	g.sinksMu.Lock()
	g.sinks = append(g.sinks, sink)
	g.sinksMu.Unlock()
}

// Start subscribes to the advert feed and begins the publish loop and
// health reporting.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: If the advert subscription fails
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.health.PublishStarting(); err != nil {
		g.logError("failed to publish starting status", err)
	}

	topic := g.topics.AllAdverts()
	if err := g.mqtt.Subscribe(topic, 0, g.handleAdvertMessage); err != nil {
		return fmt.Errorf("subscribe to adverts: %w", err)
	}
	g.logInfo("subscribed to adverts", "topic", topic)

	g.wg.Add(1)
	go g.publishLoop(ctx)

	g.health.Start(ctx)

	g.logInfo("gateway started",
		"publish_interval", g.interval.String(),
		"buffer_size", len(g.buf),
	)
	return nil
}

// Stop ends the publish loop and health reporting.
// Safe to call multiple times.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		close(g.done)
		g.wg.Wait()
		g.health.Stop()
		g.logInfo("gateway stopped")
	})
}

// Health returns the gateway's health reporter.
func (g *Gateway) Health() *HealthReporter {
	return g.health
}

// handleAdvertMessage is the MQTT callback. Rejected adverts are routine
// (foreign devices, full registry) and only logged at debug.
func (g *Gateway) handleAdvertMessage(topic string, payload []byte) error {
	err := g.HandleAdvertisement(topic, payload)
	if errors.Is(err, ErrRejected) {
		g.logDebug("advert rejected", "topic", topic)
		return nil
	}
	return err
}

// HandleAdvertisement parses an advert message and ingests it.
// The address falls back to the last topic level when the body omits it.
func (g *Gateway) HandleAdvertisement(topic string, payload []byte) error {
	var adv Advertisement
	if err := json.Unmarshal(payload, &adv); err != nil {
		g.received.Add(1)
		g.rejected.Add(1)
		return fmt.Errorf("%w: %v", ErrInvalidAdvertisement, err)
	}
	if adv.Address == "" {
		adv.Address = mqtt.LastLevel(topic)
	}
	_, err := g.Ingest(adv)
	return err
}

// Ingest feeds one advertisement into the registry. On a semantic change
// the decoded state is published retained and written to telemetry.
func (g *Gateway) Ingest(adv Advertisement) (registry.Outcome, error) {
	g.received.Add(1)

	serviceData, manufData, err := adv.Payloads()
	if err != nil {
		g.rejected.Add(1)
		return registry.Rejected, err
	}

	outcome := g.registry.Ingest(adv.Address, adv.RSSI, serviceData, manufData)
	switch outcome {
	case registry.Added:
		g.added.Add(1)
		g.logInfo("device added", "address", adv.Address)
		g.publishState(adv.Address)
	case registry.Updated:
		g.updated.Add(1)
		g.publishState(adv.Address)
	case registry.Unchanged:
		g.unchanged.Add(1)
	default:
		g.rejected.Add(1)
		return outcome, fmt.Errorf("%w: %s", ErrRejected, adv.Address)
	}
	return outcome, nil
}

// publishState emits the decoded state of one device.
func (g *Gateway) publishState(address string) {
	index, ok := g.registry.Find(address)
	if !ok {
		return
	}
	rec, ok := g.registry.Get(index)
	if !ok {
		return
	}

	msg := StateMessage{
		Address:   rec.Address(),
		Model:     rec.Model().Name(),
		ModelID:   rec.Model().String(),
		RSSI:      rec.RSSI,
		Timestamp: g.now().UTC(),
	}
	if decoded, err := rec.Decode(); err == nil {
		msg.State = StateFields(decoded.Payload)
	}

	if g.mqtt.IsConnected() {
		payload, err := json.Marshal(msg)
		if err != nil {
			g.logError("failed to marshal state", err)
		} else if err := g.mqtt.Publish(g.topics.DeviceState(msg.Address), payload, stateQoS, true); err != nil {
			g.logError("failed to publish state", err)
		}
	}

	if g.telemetry != nil {
		g.telemetry.WriteReading(influxdb.Reading{
			MAC:    msg.Address,
			Model:  msg.Model,
			RSSI:   msg.RSSI,
			Fields: msg.State,
			Time:   msg.Timestamp,
		})
	}
}

// publishLoop pushes pending changes every interval.
func (g *Gateway) publishLoop(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.done:
			return
		case <-ticker.C:
			g.PublishChanges(ctx)
			if g.sweeper != nil {
				if n := g.sweeper.Sweep(ctx, g.now()); n > 0 {
					g.logInfo("expired webhooks removed", "count", n)
				}
			}
		}
	}
}

// PublishChanges encodes the changed records and hands the snapshot to
// every sink with subscribers. Nothing is encoded, and no change flag is
// cleared, while no sink is listening.
//
// Returns the snapshot length in bytes, or 0 if nothing was sent.
func (g *Gateway) PublishChanges(ctx context.Context) int {
	if !g.registry.HasChanged() {
		return 0
	}
	sinks := g.activeSinks()
	if len(sinks) == 0 {
		return 0
	}

	g.bufMu.Lock()
	defer g.bufMu.Unlock()

	n := g.encoder.EncodeAll(g.buf, true)
	if n <= len("[]") {
		return 0
	}
	snap := g.buf[:n]
	for _, s := range sinks {
		s.Notify(ctx, snap)
	}
	g.published.Add(1)
	g.logDebug("change snapshot published", "bytes", n, "sinks", len(sinks))
	return n
}

func (g *Gateway) activeSinks() []ChangeSink {
	g.sinksMu.RLock()
	defer g.sinksMu.RUnlock()

	active := make([]ChangeSink, 0, len(g.sinks))
	for _, s := range g.sinks {
		if s.HasSubscribers() {
			active = append(active, s)
		}
	}
	return active
}

// Stats returns a copy of the running counters.
func (g *Gateway) Stats() Statistics {
	return Statistics{
		AdvertsReceived:    g.received.Load(),
		AdvertsRejected:    g.rejected.Load(),
		DevicesAdded:       g.added.Load(),
		DevicesUpdated:     g.updated.Load(),
		AdvertsUnchanged:   g.unchanged.Load(),
		SnapshotsPublished: g.published.Load(),
	}
}

// Metrics contains gateway data for the API health endpoint.
type Metrics struct {
	Connected bool
	Status    string
	Devices   int
	Stats     Statistics
}

// GetMetrics returns current gateway metrics.
func (g *Gateway) GetMetrics() Metrics {
	status, _ := g.health.determineStatus()
	return Metrics{
		Connected: g.mqtt.IsConnected(),
		Status:    string(status),
		Devices:   g.registry.Count(),
		Stats:     g.Stats(),
	}
}

// logInfo logs an info message if logger is set.
func (g *Gateway) logInfo(msg string, keysAndValues ...any) {
	g.loggerMu.RLock()
	logger := g.logger
	g.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (g *Gateway) logError(msg string, err error) {
	g.loggerMu.RLock()
	logger := g.logger
	g.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (g *Gateway) logDebug(msg string, keysAndValues ...any) {
	g.loggerMu.RLock()
	logger := g.logger
	g.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
