package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/webhook"
)

// webhookRequest is the body of POST /webhooks.
type webhookRequest struct {
	URL string `json:"url"`
}

// handleListWebhooks returns the registered subscribers.
func (s *Server) handleListWebhooks(w http.ResponseWriter, _ *http.Request) {
	reg := s.webhooks.Registry()
	entries := reg.Entries()
	writeJSON(w, http.StatusOK, map[string]any{
		"webhooks":    entries,
		"count":       len(entries),
		"capacity":    webhook.Capacity,
		"ttl_seconds": int(reg.TTL().Seconds()),
	})
}

// handleRegisterWebhook registers or refreshes a subscriber.
// Subscribers must re-register before the TTL runs out.
func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.webhooks.Register(r.Context(), req.URL, time.Now())
	switch {
	case errors.Is(err, webhook.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, webhook.ErrRegistryFull):
		writeError(w, http.StatusConflict, "webhook registry is full")
		return
	case err != nil:
		// The entry is registered in memory; only persistence failed.
		s.logger.Warn("webhook persistence failed", "url", req.URL, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":         req.URL,
		"ttl_seconds": int(s.webhooks.Registry().TTL().Seconds()),
	})
}

// handleUnregisterWebhook removes the subscriber named by the url query
// parameter.
func (s *Server) handleUnregisterWebhook(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	err := s.webhooks.Unregister(r.Context(), url)
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		writeError(w, http.StatusNotFound, "webhook not registered")
		return
	case err != nil:
		s.logger.Warn("webhook delete failed", "url", url, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
