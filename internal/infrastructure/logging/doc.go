// Package logging provides structured logging for the BLE hub.
//
// It wraps log/slog so every entry carries service and version fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	registry.SetLogger(logger.Component("registry"))
//	logger.Error("failed to connect", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens. Webhook URLs may carry
// credentials in their query string and are logged at debug level only.
package logging
