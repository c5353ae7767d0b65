package gateway

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// MQTT message types exchanged between the hub and the BLE radio layer.

// Advertisement is one raw BLE advertisement forwarded by the scanner.
// Topic: blehub/advert/{mac}
//
// Service and manufacturer data are hex strings; separators (':' or ' ')
// and case are ignored.
type Advertisement struct {
	// Address is the advertiser MAC. When empty the last topic level is used.
	Address string `json:"address"`

	// RSSI is the received signal strength in dBm.
	RSSI int `json:"rssi"`

	// ServiceData is the SwitchBot service data; byte 0 is the model.
	ServiceData string `json:"serviceData"`

	// ManufacturerData is the vendor data, starting with the company id.
	ManufacturerData string `json:"manufacturerData,omitempty"`
}

// Payloads decodes the hex fields. Manufacturer data is nil when absent.
func (a Advertisement) Payloads() (serviceData, manufData []byte, err error) {
	serviceData, err = decodeHex(a.ServiceData)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: serviceData: %v", ErrInvalidAdvertisement, err)
	}
	if len(serviceData) == 0 {
		return nil, nil, fmt.Errorf("%w: serviceData is empty", ErrInvalidAdvertisement)
	}
	if a.ManufacturerData != "" {
		manufData, err = decodeHex(a.ManufacturerData)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: manufacturerData: %v", ErrInvalidAdvertisement, err)
		}
	}
	return serviceData, manufData, nil
}

var hexSeparators = strings.NewReplacer(":", "", " ", "", "-", "")

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(hexSeparators.Replace(s))
}

// StateMessage is the decoded state of one device.
// Topic: blehub/state/{mac}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// Address is the canonical device MAC.
	Address string `json:"address"`

	// Model is the model name, e.g. "WoSensorTH". Empty for unknown models.
	Model string `json:"model,omitempty"`

	// ModelID is the raw discriminant character.
	ModelID string `json:"model_id"`

	// RSSI is the signal strength of the advert that changed the state.
	RSSI int `json:"rssi"`

	// Timestamp is when the change was observed (UTC).
	Timestamp time.Time `json:"timestamp"`

	// State holds the decoded fields. Nil for models without a decoder.
	State map[string]any `json:"state,omitempty"`
}

// HealthStatus represents the operational status of the hub.
type HealthStatus string

const (
	// HealthHealthy indicates the hub is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the hub is running with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the hub is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the hub is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports hub status.
// Topic: blehub/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Hub            string       `json:"hub"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         HealthStatus `json:"status"`
	Version        string       `json:"version"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	Devices        int          `json:"devices"`
	Webhooks       int          `json:"webhooks"`
	QueuedCommands int          `json:"queued_commands"`
	Statistics     *Statistics  `json:"statistics,omitempty"`

	// Reason explains a degraded status.
	Reason string `json:"reason,omitempty"`
}

// Statistics are the gateway's running counters.
type Statistics struct {
	AdvertsReceived    uint64 `json:"adverts_received"`
	AdvertsRejected    uint64 `json:"adverts_rejected"`
	DevicesAdded       uint64 `json:"devices_added"`
	DevicesUpdated     uint64 `json:"devices_updated"`
	AdvertsUnchanged   uint64 `json:"adverts_unchanged"`
	SnapshotsPublished uint64 `json:"snapshots_published"`
}
