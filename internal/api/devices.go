package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleListDevices returns every stored device as a JSON array. The
// buffer is sized for a full registry so the listing is never cut short.
//
// Query parameters:
//   - changed: when true, only devices changed since the last push are
//     returned, and their change flags are consumed
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	onlyChanged := false
	if v := r.URL.Query().Get("changed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "changed must be true or false")
			return
		}
		onlyChanged = b
	}

	buf := make([]byte, max(s.bufSize, s.encoder.MaxArraySize()))
	n := s.encoder.EncodeAll(buf, onlyChanged)
	if n == 0 {
		writeError(w, http.StatusInternalServerError, "snapshot buffer too small")
		return
	}
	writeRawJSON(w, http.StatusOK, buf[:n])
}

// handleGetDevice returns one device. The id is the registry index or the
// device MAC address.
//
// An unknown index answers 404 with the encoder's error object as body.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var index int
	if strings.Contains(id, ":") {
		i, ok := s.registry.Find(id)
		if !ok {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		index = i
	} else {
		i, err := strconv.Atoi(id)
		if err != nil {
			writeError(w, http.StatusBadRequest, "device id must be an index or a MAC address")
			return
		}
		index = i
	}

	status := http.StatusOK
	if _, ok := s.registry.Get(index); !ok {
		status = http.StatusNotFound
	}

	buf := make([]byte, s.bufSize)
	n := s.encoder.EncodeOne(index, buf)
	writeRawJSON(w, status, buf[:n])
}
