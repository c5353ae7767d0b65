package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config mirrors config.yaml. See Load for how values are layered.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Registry  RegistryConfig  `yaml:"registry"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	Commands  CommandsConfig  `yaml:"commands"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HubConfig identifies this hub and sets its publish cadence.
type HubConfig struct {
	ID  string `yaml:"id"`
	MAC string `yaml:"mac"`

	// PublishInterval is how often changed devices are pushed to
	// subscribers (in milliseconds). Default: 1000
	PublishInterval int `yaml:"publish_interval"`

	// HealthInterval is how often hub health is published (in seconds).
	// Default: 30
	HealthInterval int `yaml:"health_interval"`

	// MirrorSnapshots also publishes every change snapshot to
	// {prefix}/snapshot.
	MirrorSnapshots bool `yaml:"mirror_snapshots"`
}

// RegistryConfig contains device registry settings.
type RegistryConfig struct {
	// StoreUnknownModels keeps adverts whose model byte is not recognised.
	StoreUnknownModels bool `yaml:"store_unknown_models"`
}

// WebhooksConfig contains webhook subscriber settings.
type WebhooksConfig struct {
	// TTL is how long a subscriber stays registered without renewal
	// (in seconds). Default: 300
	TTL int `yaml:"ttl"`

	// MaxRefusals is the refusal count above which a subscriber is evicted.
	// Default: 10
	MaxRefusals int `yaml:"max_refusals"`

	// DeliveryTimeout bounds each webhook POST (in seconds). Default: 5
	DeliveryTimeout int `yaml:"delivery_timeout"`

	// Persist stores subscribers in the database so they survive restarts.
	Persist bool `yaml:"persist"`
}

// CommandsConfig contains command dispatch settings.
type CommandsConfig struct {
	// DrainInterval is the queue drain period (in milliseconds). Default: 250
	DrainInterval int `yaml:"drain_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// TopicPrefix roots every hub topic. Default: "blehub"
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// SnapshotBuffer is the byte size of the buffer snapshots are
	// encoded into. Default: 8192
	SnapshotBuffer int `yaml:"snapshot_buffer"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration in layers: defaults, then the YAML file at
// path, then a .env file in the working directory if one exists, then the
// BLEHUB_* variables listed in envOverrides.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			ID:              "blehub-001",
			PublishInterval: 1000,
			HealthInterval:  30,
		},
		Webhooks: WebhooksConfig{
			TTL:             300,
			MaxRefusals:     10,
			DeliveryTimeout: 5,
			Persist:         true,
		},
		Commands: CommandsConfig{
			DrainInterval: 250,
		},
		Database: DatabaseConfig{
			Path:        "./data/blehub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "blehub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "blehub",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			SnapshotBuffer: 8192,
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// envOverrides maps each supported variable onto the field it replaces.
// Empty values are ignored.
var envOverrides = []struct {
	name  string
	apply func(c *Config, v string)
}{
	{"BLEHUB_HUB_MAC", func(c *Config, v string) { c.Hub.MAC = v }},
	{"BLEHUB_DATABASE_PATH", func(c *Config, v string) { c.Database.Path = v }},
	{"BLEHUB_MQTT_HOST", func(c *Config, v string) { c.MQTT.Broker.Host = v }},
	{"BLEHUB_MQTT_USERNAME", func(c *Config, v string) { c.MQTT.Auth.Username = v }},
	{"BLEHUB_MQTT_PASSWORD", func(c *Config, v string) { c.MQTT.Auth.Password = v }},
	{"BLEHUB_API_HOST", func(c *Config, v string) { c.API.Host = v }},
	{"BLEHUB_API_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	}},
	{"BLEHUB_INFLUXDB_TOKEN", func(c *Config, v string) { c.InfluxDB.Token = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

// minSnapshotBuffer is the smallest buffer that can hold a device record.
const minSnapshotBuffer = 64

// Validate reports every invalid setting at once, joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Hub.ID != "", "hub.id is required")
	check(c.Hub.PublishInterval > 0, "hub.publish_interval must be positive")
	check(c.Webhooks.TTL > 0, "webhooks.ttl must be positive")
	check(c.Webhooks.MaxRefusals >= 0, "webhooks.max_refusals must not be negative")
	check(!c.Webhooks.Persist || c.Database.Path != "", "database.path is required when webhooks.persist is set")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	check(c.API.SnapshotBuffer >= minSnapshotBuffer, fmt.Sprintf("api.snapshot_buffer must be at least %d bytes", minSnapshotBuffer))
	check(!c.InfluxDB.Enabled || c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")

	return errors.Join(errs...)
}

func seconds(n int) time.Duration      { return time.Duration(n) * time.Second }
func milliseconds(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// GetReadTimeout is the HTTP server read timeout.
func (c *Config) GetReadTimeout() time.Duration { return seconds(c.API.Timeouts.Read) }

// GetWriteTimeout is the HTTP server write timeout.
func (c *Config) GetWriteTimeout() time.Duration { return seconds(c.API.Timeouts.Write) }

// GetIdleTimeout is the HTTP server keep-alive timeout.
func (c *Config) GetIdleTimeout() time.Duration { return seconds(c.API.Timeouts.Idle) }

// GetPublishInterval is the change snapshot period.
func (c *Config) GetPublishInterval() time.Duration { return milliseconds(c.Hub.PublishInterval) }

// GetHealthInterval is the hub health publish period.
func (c *Config) GetHealthInterval() time.Duration { return seconds(c.Hub.HealthInterval) }

// GetWebhookTTL is how long a subscription lives without renewal.
func (c *Config) GetWebhookTTL() time.Duration { return seconds(c.Webhooks.TTL) }

// GetDeliveryTimeout bounds each webhook POST.
func (c *Config) GetDeliveryTimeout() time.Duration { return seconds(c.Webhooks.DeliveryTimeout) }

// GetDrainInterval is the command queue drain period.
func (c *Config) GetDrainInterval() time.Duration { return milliseconds(c.Commands.DrainInterval) }
