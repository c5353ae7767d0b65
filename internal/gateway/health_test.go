package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/registry"
)

func decodeHealth(t *testing.T, msg publishedMessage) HealthMessage {
	t.Helper()
	var h HealthMessage
	if err := json.Unmarshal(msg.payload, &h); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	return h
}

func TestNewHealthReporterDefaults(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	if h.cfg.Interval != DefaultHealthInterval {
		t.Errorf("interval = %v, want %v", h.cfg.Interval, DefaultHealthInterval)
	}
	if h.cfg.Topic != "blehub/health" {
		t.Errorf("topic = %q, want blehub/health", h.cfg.Topic)
	}
	// No publisher configured: publishing is a no-op.
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() error = %v", err)
	}
}

func TestHealthReporterStatus(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		devices    int
		wantStatus HealthStatus
		wantReason string
	}{
		{"healthy", true, 3, HealthHealthy, ""},
		{"mqtt down", false, 3, HealthDegraded, "MQTT disconnected"},
		{"registry full", true, registry.Capacity, HealthDegraded, "device registry full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := newMockMQTT(tt.connected)
			h := NewHealthReporter(HealthReporterConfig{
				HubID:     "hub-1",
				Version:   "1.2.3",
				Topic:     "blehub/health",
				Publisher: pub,
				Devices:   func() int { return tt.devices },
				Webhooks:  func() int { return 2 },
				Commands:  func() int { return 4 },
				Statistics: func() Statistics {
					return Statistics{AdvertsReceived: 10}
				},
			})

			if err := h.PublishNow(); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}
			msgs := pub.onTopic("blehub/health")
			if len(msgs) != 1 || !msgs[0].retained || msgs[0].qos != 1 {
				t.Fatalf("health messages = %+v", msgs)
			}

			got := decodeHealth(t, msgs[0])
			if got.Status != tt.wantStatus || got.Reason != tt.wantReason {
				t.Errorf("status = %s (%q), want %s (%q)", got.Status, got.Reason, tt.wantStatus, tt.wantReason)
			}
			if got.Hub != "hub-1" || got.Version != "1.2.3" {
				t.Errorf("identity = %s/%s", got.Hub, got.Version)
			}
			if got.Devices != tt.devices || got.Webhooks != 2 || got.QueuedCommands != 4 {
				t.Errorf("counts = %d/%d/%d", got.Devices, got.Webhooks, got.QueuedCommands)
			}
			if got.Statistics == nil || got.Statistics.AdvertsReceived != 10 {
				t.Errorf("statistics = %+v", got.Statistics)
			}
		})
	}
}

func TestHealthReporterLifecycle(t *testing.T) {
	pub := newMockMQTT(true)
	metrics := &mockTelemetry{}
	h := NewHealthReporter(HealthReporterConfig{
		HubID:     "hub-1",
		Interval:  10 * time.Millisecond,
		Publisher: pub,
		Metrics:   metrics,
		Devices:   func() int { return 7 },
	})

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}

	h.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	h.Stop()
	h.Stop()

	msgs := pub.onTopic("blehub/health")
	if len(msgs) < 3 {
		t.Fatalf("health messages = %d, want starting, periodic and stopping", len(msgs))
	}
	if first := decodeHealth(t, msgs[0]); first.Status != HealthStarting {
		t.Errorf("first status = %s, want starting", first.Status)
	}
	if last := decodeHealth(t, msgs[len(msgs)-1]); last.Status != HealthStopping {
		t.Errorf("last status = %s, want stopping", last.Status)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.metrics["devices"] != 7 {
		t.Errorf("devices metric = %v, want 7", metrics.metrics["devices"])
	}
	if _, ok := metrics.metrics["uptime_seconds"]; !ok {
		t.Error("uptime_seconds metric not written")
	}
}

func TestHealthReporterStopsOnContextCancel(t *testing.T) {
	pub := newMockMQTT(true)
	h := NewHealthReporter(HealthReporterConfig{Interval: time.Hour, Publisher: pub})

	ctx, cancel := context.WithCancel(context.Background())
	h.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		h.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after context cancel")
	}
}

func TestHealthSnapshot(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{
		HubID:     "hub-1",
		Publisher: newMockMQTT(true),
		Devices:   func() int { return 1 },
	})
	snap := h.Snapshot()
	if snap.Status != HealthHealthy || snap.Devices != 1 || snap.Statistics != nil {
		t.Errorf("Snapshot() = %+v", snap)
	}
}
