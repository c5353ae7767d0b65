package mqtt

import "strings"

// DefaultTopicPrefix is the root of every hub topic.
const DefaultTopicPrefix = "blehub"

// Topics builds hub MQTT topics under a common prefix.
//
// The zero value uses DefaultTopicPrefix:
//
//	topics := mqtt.Topics{}
//	topics.DeviceState("AA:BB:CC:DD:EE:01")
//	// Returns: "blehub/state/AA:BB:CC:DD:EE:01"
//
// Device addresses appear in topics in their canonical upper case
// colon-separated form. MQTT permits ':' in topic levels.
type Topics struct {
	Prefix string
}

// NewTopics returns builders rooted at prefix. An empty prefix selects
// DefaultTopicPrefix; surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	return Topics{Prefix: strings.Trim(prefix, "/")}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Advert returns the topic the radio layer publishes raw advertisements on.
//
// Example: blehub/advert/AA:BB:CC:DD:EE:01
func (t Topics) Advert(mac string) string {
	return t.root() + "/advert/" + mac
}

// DeviceState returns the retained decoded state topic for a device.
//
// Example: blehub/state/AA:BB:CC:DD:EE:01
func (t Topics) DeviceState(mac string) string {
	return t.root() + "/state/" + mac
}

// Command returns the topic a queued command is dispatched on.
//
// Example: blehub/command/AA:BB:CC:DD:EE:01
func (t Topics) Command(address string) string {
	return t.root() + "/command/" + address
}

// CommandRequest returns the topic command requests are accepted on.
//
// Example: blehub/request/command
func (t Topics) CommandRequest() string {
	return t.root() + "/request/command"
}

// Snapshot returns the topic changed-device snapshots are mirrored to.
//
// Example: blehub/snapshot
func (t Topics) Snapshot() string {
	return t.root() + "/snapshot"
}

// Health returns the hub health topic.
//
// Example: blehub/health
func (t Topics) Health() string {
	return t.root() + "/health"
}

// Status returns the connection status topic carrying the LWT.
//
// Example: blehub/status
func (t Topics) Status() string {
	return t.root() + "/status"
}

// AllAdverts returns a pattern matching every advertisement topic.
//
// Pattern: blehub/advert/+
func (t Topics) AllAdverts() string {
	return t.root() + "/advert/+"
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: blehub/state/+
func (t Topics) AllDeviceStates() string {
	return t.root() + "/state/+"
}

// AllTopics returns a pattern matching all hub topics.
//
// Pattern: blehub/#
func (t Topics) AllTopics() string {
	return t.root() + "/#"
}

// LastLevel returns the final level of topic, which for advert, state and
// command topics is the device address.
func LastLevel(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
