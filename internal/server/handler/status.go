package handler

import (
	"net/http"

	"arbmon/internal/monitor"
)

// StatusSource exposes the poll loop's current status.
type StatusSource interface {
	Status() monitor.Status
}

// StatusHandler reports the monitor's poll loop state.
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a StatusHandler. source may be nil when the
// server runs without an embedded monitor.
func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// GetStatus returns the poll loop status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "monitor not running in this mode")
		return
	}
	writeJSON(w, http.StatusOK, h.source.Status())
}
