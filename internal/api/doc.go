// Package api implements the HTTP REST API and WebSocket server for the BLE hub.
//
// This package provides:
//   - Device snapshot endpoints backed by the bounded JSON encoder
//   - Webhook subscription management
//   - Command submission into the dispatch queue
//   - WebSocket hub pushing change snapshots to connected clients
//   - Request ID, access log, panic recovery and body limit middleware
//
// # Endpoints
//
//	GET    /api/v1/health
//	GET    /api/v1/metrics
//	GET    /api/v1/devices?changed=true
//	GET    /api/v1/devices/{id}          index or MAC address
//	GET    /api/v1/webhooks
//	POST   /api/v1/webhooks              {"url": "..."}
//	DELETE /api/v1/webhooks?url=...
//	POST   /api/v1/commands              {"address","payload","reply_to"}
//	GET    /api/v1/ws
//
// # Graceful Degradation
//
// The server operates without MQTT. Snapshots and webhooks keep working;
// queued commands wait until the broker returns.
package api
