// Package api provides HTTP API handlers for gesture history, command
// bindings and pipeline status.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayusman/holovis/internal/store"
)

// MaxEventLimit caps the number of events returned by one request.
const MaxEventLimit = 1000

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// EventHandler serves the classified gesture history.
type EventHandler struct {
	store *store.Store
}

// NewEventHandler creates a new EventHandler with the given store.
func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

type eventResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Code       uint8  `json:"code"`
	SourceID   string `json:"source,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
	Total  int             `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles GET /api/events?limit=N, most recent first.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := store.DefaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxEventLimit)
	}

	events, err := h.store.Events().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	total, err := h.store.Events().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}

	response := listEventsResponse{
		Events: make([]eventResponse, 0, len(events)),
		Total:  total,
	}
	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			ID:         e.ID,
			Kind:       e.Kind,
			Code:       e.Code,
			SourceID:   e.SourceID,
			OccurredAt: e.OccurredAt.Format(timeFormat),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
