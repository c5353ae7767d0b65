// Package config handles loading and validating the BLE hub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file for local development
//   - Overriding with BLEHUB_* environment variables
//   - Validation of required fields
//
// Secrets (MQTT password, InfluxDB token) should be set via environment
// variables rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hub.ID)
package config
