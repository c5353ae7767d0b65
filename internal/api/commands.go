package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-blehub/internal/command"
)

// handleSubmitCommand queues a command for a device.
//
// Responses:
//   - 200 {"result":"queued"} or {"result":"duplicate"}
//   - 400 for a bad address or payload
//   - 503 when the queue is full
func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.commands.Submit(req.Address, req.Payload, req.ReplyTo)
	switch {
	case errors.Is(err, command.ErrInvalidAddress), errors.Is(err, command.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, command.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "command queue is full")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result":  result,
		"pending": s.commands.Queue().Count(),
	})
}
