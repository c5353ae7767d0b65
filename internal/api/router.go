package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-blehub/internal/registry"
)

// buildRouter mounts every endpoint under /api/v1.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID, s.withAccessLog, s.withRecovery, s.withBodyLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/ws", s.handleWebSocket)

		r.Get("/devices", s.handleListDevices)
		r.Get("/devices/{id}", s.handleGetDevice)

		r.Get("/webhooks", s.handleListWebhooks)
		r.Post("/webhooks", s.handleRegisterWebhook)
		r.Delete("/webhooks", s.handleUnregisterWebhook)

		r.Post("/commands", s.handleSubmitCommand)
	})
	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Devices      int    `json:"devices"`
	RegistryFull bool   `json:"registry_full"`
	Gateway      string `json:"gateway,omitempty"`
}

// handleHealth answers 200 while the process is serving. Gateway reports
// the advert pipeline's own status when one is wired.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n := s.registry.Count()
	resp := healthResponse{
		Status:       "ok",
		Version:      s.version,
		Devices:      n,
		RegistryFull: n >= registry.Capacity,
	}
	if s.gateway != nil {
		resp.Gateway = s.gateway.GetMetrics().Status
	}
	writeJSON(w, http.StatusOK, resp)
}
