// BLE Hub - SwitchBot advertisement gateway
//
// This is the main entry point for the hub. It receives SwitchBot BLE
// advertisements over MQTT, keeps the last state of up to 50 devices, and
// pushes changes to webhooks, websocket clients and MQTT subscribers.
// Commands submitted over HTTP or MQTT are queued and dispatched to the
// radio bridge.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-blehub/migrations"

	"github.com/nerrad567/gray-logic-blehub/internal/api"
	"github.com/nerrad567/gray-logic-blehub/internal/command"
	"github.com/nerrad567/gray-logic-blehub/internal/gateway"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-blehub/internal/registry"
	"github.com/nerrad567/gray-logic-blehub/internal/snapshot"
	"github.com/nerrad567/gray-logic-blehub/internal/webhook"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting BLE hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database is only needed to persist webhook subscribers
	var db *database.DB
	if cfg.Webhooks.Persist {
		db, err = database.Open(database.FromConfig(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")
	}

	// Device registry and snapshot encoder
	devices := registry.New(registry.Options{StoreUnknown: cfg.Registry.StoreUnknownModels})
	devices.SetLogger(log.Component("registry"))
	encoder := snapshot.NewEncoder(devices, cfg.Hub.MAC)

	// Webhook subscribers
	webhooks, notifier, err := startWebhooks(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// The websocket hub is shared by the gateway (as a change sink) and the
	// API server (for connections), so it is created here.
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	wsHub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go wsHub.Run(hubCtx)

	// Command queue and dispatcher
	topics := mqttClient.Topics()
	dispatcher := command.NewDispatcher(command.NewQueue(), command.DispatcherConfig{
		Publisher: mqttClient,
		Topic:     topics.Command,
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		Interval:  cfg.GetDrainInterval(),
	})
	dispatcher.SetLogger(log.Component("command"))

	// Advert gateway
	gw, err := startGateway(ctx, gatewayDeps{
		cfg:        cfg,
		devices:    devices,
		encoder:    encoder,
		mqtt:       mqttClient,
		influx:     influxClient,
		webhooks:   webhooks,
		notifier:   notifier,
		wsHub:      wsHub,
		dispatcher: dispatcher,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping gateway")
		gw.Stop()
	}()

	if err := mqttClient.Subscribe(topics.CommandRequest(), byte(cfg.MQTT.QoS), dispatcher.HandleRequest); err != nil { //nolint:gosec // validated 0-2
		return fmt.Errorf("subscribing to command requests: %w", err)
	}
	dispatcher.Start(ctx)
	defer func() {
		log.Info("stopping command dispatcher")
		dispatcher.Stop()
	}()
	log.Info("command dispatcher started", "topic", topics.CommandRequest())

	// HTTP API
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Registry:    devices,
		Encoder:     encoder,
		Webhooks:    webhooks,
		Commands:    dispatcher,
		Gateway:     gw,
		MQTT:        mqttClient,
		ExternalHub: wsHub,
		Version:     version,
	}
	if db != nil {
		deps.DB = db.DB
	}
	apiServer, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API, dispatcher, gateway, websocket hub, InfluxDB, MQTT, database

	log.Info("BLE hub stopped")
	return nil
}

// startWebhooks builds the webhook registry and restores persisted
// subscribers.
//
// Parameters:
//   - ctx: Context for the restore query
//   - cfg: Application configuration
//   - db: Open database, or nil when persistence is off
//   - log: Logger instance
//
// Returns:
//   - *webhook.Service: Registry plus store
//   - *webhook.Notifier: Delivers change snapshots
//   - error: If restoring subscribers fails
func startWebhooks(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*webhook.Service, *webhook.Notifier, error) {
	reg := webhook.NewRegistry(cfg.GetWebhookTTL(), cfg.Webhooks.MaxRefusals)

	// A nil *SQLiteStore would be a non-nil Store.
	var store webhook.Store
	if db != nil {
		store = webhook.NewSQLiteStore(db.DB)
	}

	svc := webhook.NewService(reg, store)
	svc.SetLogger(log.Component("webhook"))

	restored, err := svc.Restore(ctx, time.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("restoring webhooks: %w", err)
	}
	log.Info("webhook registry initialised",
		"restored", restored,
		"ttl", cfg.GetWebhookTTL(),
		"persist", store != nil,
	)

	notifier := webhook.NewNotifier(reg, &http.Client{Timeout: cfg.GetDeliveryTimeout()})
	notifier.SetLogger(log.Component("webhook"))

	return svc, notifier, nil
}

// gatewayDeps groups the collaborators startGateway wires together.
type gatewayDeps struct {
	cfg        *config.Config
	devices    *registry.Registry
	encoder    *snapshot.Encoder
	mqtt       *mqtt.Client
	influx     *influxdb.Client
	webhooks   *webhook.Service
	notifier   *webhook.Notifier
	wsHub      *api.Hub
	dispatcher *command.Dispatcher
}

// startGateway creates and starts the advert gateway.
//
// Parameters:
//   - ctx: Context for the publish loop
//   - deps: Collaborators
//   - log: Logger instance
//
// Returns:
//   - *gateway.Gateway: Running gateway
//   - error: If the gateway cannot subscribe to adverts
func startGateway(ctx context.Context, deps gatewayDeps, log *logging.Logger) (*gateway.Gateway, error) {
	cfg := deps.cfg
	topics := deps.mqtt.Topics()

	sinks := []gateway.ChangeSink{deps.notifier, deps.wsHub}
	if cfg.Hub.MirrorSnapshots {
		sinks = append(sinks, gateway.NewMQTTSink(deps.mqtt, topics.Snapshot(), byte(cfg.MQTT.QoS))) //nolint:gosec // validated 0-2
	}

	opts := gateway.Options{
		Registry:        deps.devices,
		Encoder:         deps.encoder,
		MQTT:            deps.mqtt,
		Topics:          topics,
		Sinks:           sinks,
		Sweeper:         deps.webhooks,
		PublishInterval: cfg.GetPublishInterval(),
		BufferSize:      cfg.API.SnapshotBuffer,
		Health: gateway.HealthReporterConfig{
			HubID:    cfg.Hub.ID,
			Version:  version,
			Interval: cfg.GetHealthInterval(),
			Webhooks: deps.webhooks.Registry().Count,
			Commands: deps.dispatcher.Queue().Count,
		},
		Logger: log.Component("gateway"),
	}
	// A nil *influxdb.Client would be a non-nil Telemetry.
	if deps.influx != nil {
		opts.Telemetry = deps.influx
	}

	gw, err := gateway.NewGateway(opts)
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}
	if err := gw.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting gateway: %w", err)
	}
	log.Info("gateway started",
		"adverts", topics.AllAdverts(),
		"publish_interval", cfg.GetPublishInterval(),
		"mirror_snapshots", cfg.Hub.MirrorSnapshots,
	)

	return gw, nil
}

// getConfigPath returns the configuration file path.
// Uses BLEHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BLEHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if persistence is off)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
