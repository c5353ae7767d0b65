// Package command queues outbound device commands until the BLE transport
// picks them up.
//
// The Queue is a fixed 20-slot ring buffer. Payloads arrive as text such as
// "1,2,255" and are parsed into at most ten bytes; values outside 0-255 are
// rejected rather than narrowed.
//
// The Dispatcher accepts requests (from MQTT or the HTTP API), suppresses
// duplicates of commands still pending, and drains the queue onto the
// per-device MQTT command topic where the transport listens.
package command
