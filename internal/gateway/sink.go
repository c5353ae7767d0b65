package gateway

import "context"

// MQTTSink mirrors change snapshots onto an MQTT topic.
type MQTTSink struct {
	pub   HealthPublisher
	topic string
	qos   byte
}

// NewMQTTSink creates a sink publishing to topic.
func NewMQTTSink(pub HealthPublisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic, qos: qos}
}

// HasSubscribers reports whether the broker connection is up.
func (s *MQTTSink) HasSubscribers() bool {
	return s.pub.IsConnected()
}

// Notify publishes a copy of the snapshot. The client may send
// asynchronously, so the caller's buffer is not handed over.
func (s *MQTTSink) Notify(_ context.Context, snapshot []byte) {
	payload := make([]byte, len(snapshot))
	copy(payload, snapshot)
	_ = s.pub.Publish(s.topic, payload, s.qos, false) //nolint:errcheck // next change is published anyway
}
