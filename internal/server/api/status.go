package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/holovis/internal/app"
	"github.com/ayusman/holovis/internal/metrics"
)

// Controller reports and toggles the pipeline.
type Controller interface {
	Status() app.Status
	SetEnabled(enabled bool) error
}

// StatusHandler serves GET and PUT /api/status.
type StatusHandler struct {
	control Controller
	metrics *metrics.Metrics
}

// NewStatusHandler creates a StatusHandler. m may be nil.
func NewStatusHandler(c Controller, m *metrics.Metrics) *StatusHandler {
	return &StatusHandler{control: c, metrics: m}
}

type statusResponse struct {
	app.Status
	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

type updateStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *StatusHandler) get(w http.ResponseWriter) {
	response := statusResponse{Status: h.control.Status()}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		response.Metrics = &snap
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *StatusHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := h.control.SetEnabled(*req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}
	h.get(w)
}
