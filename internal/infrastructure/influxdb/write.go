package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// MeasurementReading holds one point per decoded advertisement.
	MeasurementReading = "switchbot"

	// MeasurementHub holds hub counters (devices, webhooks, queued commands).
	MeasurementHub = "hub"
)

// Reading is one decoded advertisement ready for storage.
type Reading struct {
	// MAC is the canonical device address. Stored as a tag.
	MAC string

	// Model is the model name, e.g. "WoSensorTH". Stored as a tag.
	Model string

	// RSSI is the signal strength the advert was received with.
	RSSI int

	// Fields are the decoded values keyed by field name. Only numeric and
	// boolean values are meaningful here; strings are written as-is.
	Fields map[string]any

	// Time is when the advert was received. Zero means now.
	Time time.Time
}

// WriteReading writes a decoded reading. The write is non-blocking; data is
// batched and sent asynchronously.
//
// A reading without fields still records rssi, so presence of a device is
// visible even for models whose payload is not decoded.
//
// Example:
//
//	client.WriteReading(influxdb.Reading{
//	    MAC:    "AA:BB:CC:DD:EE:01",
//	    Model:  "WoSensorTH",
//	    RSSI:   -61,
//	    Fields: map[string]any{"temperature_c": 21.5, "humidity": 48},
//	})
func (c *Client) WriteReading(r Reading) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields["rssi"] = r.RSSI

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{"mac": r.MAC}
	if r.Model != "" {
		tags["model"] = r.Model
	}

	c.writeAPI.WritePoint(write.NewPoint(MeasurementReading, tags, fields, ts))
}

// WriteHubMetric writes a single hub counter.
//
// Parameters:
//   - hubID: Hub identifier from config
//   - metric: Counter name (e.g., "devices", "webhooks", "queued_commands")
//   - value: The counter value
func (c *Client) WriteHubMetric(hubID string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementHub,
		map[string]string{
			"hub_id": hubID,
			"metric": metric,
		},
		map[string]any{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
