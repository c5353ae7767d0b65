package mqtt

import "fmt"

// maxPayloadSize bounds a single message. Snapshots are far smaller.
const maxPayloadSize = 256 << 10

// Publish sends payload to topic and waits for the broker acknowledgement
// (for QoS 1 and 2).
//
// Retain device state and health. Never retain commands.
//
// Returns:
//   - ErrInvalidTopic, ErrInvalidQoS, or ErrPublishFailed for oversize payloads
//   - ErrNotConnected while disconnected
//   - ErrPublishFailed wrapping a timeout or broker error
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	return await(c.paho.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}
