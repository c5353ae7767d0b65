// Package mqtt provides MQTT client connectivity for the BLE hub.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The radio layer that scans BLE advertisements runs outside this process
// and talks to the hub over the broker:
//
//	BLE scanner → {prefix}/advert/{mac} → hub → {prefix}/state/{mac}
//	                                       hub → {prefix}/command/{mac} → BLE writer
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllAdverts(), 0, gw.HandleAdvertisement)
//
//	topic := client.Topics().DeviceState("AA:BB:CC:DD:EE:01")
//	err = client.Publish(topic, state, 1, true)
//
// Handlers run on paho goroutines. Panics are recovered and handler errors
// are logged when a Logger is set.
package mqtt
