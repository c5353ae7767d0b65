package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/command"
	"github.com/nerrad567/gray-logic-blehub/internal/gateway"
	"github.com/nerrad567/gray-logic-blehub/internal/registry"
	"github.com/nerrad567/gray-logic-blehub/internal/webhook"
)

// SystemMetrics is the body of GET /metrics.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Gateway       *GatewayStats    `json:"gateway,omitempty"`
	Devices       CapacityMetrics  `json:"devices"`
	Webhooks      CapacityMetrics  `json:"webhooks"`
	Commands      CapacityMetrics  `json:"commands"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics are process figures from the Go runtime.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// GatewayStats mirrors gateway.Metrics without the connection flag, which
// MQTTMetrics already carries.
type GatewayStats struct {
	Status string             `json:"status"`
	Stats  gateway.Statistics `json:"stats"`
}

// CapacityMetrics reports how full one of the fixed tables is.
type CapacityMetrics struct {
	Used     int `json:"used"`
	Capacity int `json:"capacity"`
}

// DatabaseMetrics is a subset of sql.DBStats.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

const bytesPerMB = 1 << 20

func runtimeMetrics() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeMetrics{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(ms.Alloc) / bytesPerMB,
		MemoryTotalMB: float64(ms.TotalAlloc) / bytesPerMB,
		NumGC:         ms.NumGC,
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime) / time.Second),
		Runtime:       runtimeMetrics(),
		Devices:       CapacityMetrics{s.registry.Count(), registry.Capacity},
		Webhooks:      CapacityMetrics{s.webhooks.Registry().Count(), webhook.Capacity},
		Commands:      CapacityMetrics{s.commands.Queue().Count(), command.Capacity},
	}

	if s.hub != nil {
		m.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		m.MQTT.Connected = s.mqtt.IsConnected()
	}
	if s.gateway != nil {
		gm := s.gateway.GetMetrics()
		m.Gateway = &GatewayStats{Status: gm.Status, Stats: gm.Stats}
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, m)
}
