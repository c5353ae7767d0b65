package mqtt

import "fmt"

// Subscribe routes messages matching topic (wildcards allowed) to handler.
// The subscription is replayed after every reconnect until Unsubscribe.
//
// Example:
//
//	err := client.Subscribe(client.Topics().AllAdverts(), 0, gw.HandleAdvertisement)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.subsMu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.subsMu.Unlock()

	if err := await(c.paho.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe stops delivery for a topic previously passed to Subscribe.
// Messages already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.forget(topic)
	return await(c.paho.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

func (c *Client) forget(topic string) {
	c.subsMu.Lock()
	delete(c.subs, topic)
	c.subsMu.Unlock()
}

// SubscriptionCount returns the number of remembered subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs)
}
