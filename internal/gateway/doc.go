// Package gateway wires the BLE advertisement feed to the rest of the hub.
//
// Adverts arrive on MQTT (blehub/advert/{mac}) from the radio scanner as
// JSON with hex encoded service and manufacturer data. Each one is fed to
// the device registry. When a device is added or its state changes:
//
//   - the decoded state is published retained on blehub/state/{mac}
//   - a reading is written to the time-series store, if configured
//
// A publish loop runs every publish interval. When the registry holds
// changes and at least one ChangeSink has subscribers, the changed records
// are encoded into one JSON array and handed to every such sink (webhooks,
// websocket clients, the MQTT snapshot mirror). Webhook expiry runs on the
// same tick.
//
// The HealthReporter publishes retained hub status to blehub/health.
package gateway
