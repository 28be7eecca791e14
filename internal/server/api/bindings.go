package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/gesture"
	"github.com/ayusman/holovis/internal/store"
)

// Reloader applies stored binding changes to the running pipeline.
type Reloader interface {
	ReloadBindings(ctx context.Context) error
}

// BindingHandler handles HTTP requests for binding resources.
type BindingHandler struct {
	store    *store.Store
	reloader Reloader
	log      *zap.Logger
}

// NewBindingHandler creates a new BindingHandler. reloader may be nil, in
// which case changes take effect on the next start.
func NewBindingHandler(s *store.Store, reloader Reloader, log *zap.Logger) *BindingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BindingHandler{store: s, reloader: reloader, log: log}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/bindings or /api/bindings/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createBindingRequest struct {
	State        string          `json:"state"`
	Gesture      string          `json:"gesture"`
	Keyword      string          `json:"keyword"`
	Interactable string          `json:"interactable"`
	PluginName   string          `json:"plugin_name"`
	ActionName   string          `json:"action_name"`
	Config       json.RawMessage `json:"config"`
}

type updateBindingRequest struct {
	State        *string         `json:"state"`
	Gesture      *string         `json:"gesture"`
	Keyword      *string         `json:"keyword"`
	Interactable *string         `json:"interactable"`
	PluginName   string          `json:"plugin_name"`
	ActionName   string          `json:"action_name"`
	Config       json.RawMessage `json:"config"`
	Enabled      *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID           string          `json:"id"`
	State        string          `json:"state"`
	Gesture      string          `json:"gesture"`
	Keyword      string          `json:"keyword"`
	Interactable string          `json:"interactable"`
	PluginName   string          `json:"plugin_name"`
	ActionName   string          `json:"action_name"`
	Config       json.RawMessage `json:"config"`
	Enabled      bool            `json:"enabled"`
	CreatedAt    string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	config := store.NormalizeConfig(b.Config)
	return bindingResponse{
		ID:           b.ID,
		State:        b.State,
		Gesture:      b.Gesture,
		Keyword:      b.Keyword,
		Interactable: b.Interactable,
		PluginName:   b.PluginName,
		ActionName:   b.ActionName,
		Config:       config,
		Enabled:      b.Enabled,
		CreatedAt:    b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// validGesture accepts the wildcard "" and every named gesture kind.
func validGesture(name string) bool {
	return gesture.Kind(name).Valid()
}

// conflicts reports whether another binding already claims b's command in
// b's state.
func (h *BindingHandler) conflicts(b *store.Binding) (bool, error) {
	existing, err := h.store.Bindings().List()
	if err != nil {
		return false, err
	}
	state := b.State
	if state == "" {
		state = store.DefaultState
	}
	for _, e := range existing {
		if e.ID == b.ID {
			continue
		}
		if e.State == state && e.Gesture == b.Gesture && e.Keyword == b.Keyword && e.Interactable == b.Interactable {
			return true, nil
		}
	}
	return false, nil
}

func (h *BindingHandler) reload(r *http.Request) {
	if h.reloader == nil {
		return
	}
	if err := h.reloader.ReloadBindings(r.Context()); err != nil {
		h.log.Warn("failed to reload bindings", zap.Error(err))
	}
}

// list handles GET /api/bindings and returns all bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(bindings)),
	}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{id} and returns a single binding.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	binding, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(binding))
}

// create handles POST /api/bindings and creates a new binding.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if !validGesture(req.Gesture) {
		writeError(w, http.StatusBadRequest, "Unknown gesture")
		return
	}
	if req.PluginName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}

	config := store.NormalizeConfig(req.Config)

	binding := &store.Binding{
		ID:           uuid.New().String(),
		State:        req.State,
		Gesture:      req.Gesture,
		Keyword:      req.Keyword,
		Interactable: req.Interactable,
		PluginName:   req.PluginName,
		ActionName:   req.ActionName,
		Config:       config,
		Enabled:      true,
	}

	conflict, err := h.conflicts(binding)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing bindings")
		return
	}
	if conflict {
		writeError(w, http.StatusConflict, "Command already bound in this state")
		return
	}

	if err := h.store.Bindings().Create(binding); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}
	h.reload(r)

	writeJSON(w, http.StatusCreated, toBindingResponse(binding))
}

// update handles PUT /api/bindings/{id} and updates an existing binding.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	binding, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.State != nil {
		binding.State = *req.State
	}
	if req.Gesture != nil {
		if !validGesture(*req.Gesture) {
			writeError(w, http.StatusBadRequest, "Unknown gesture")
			return
		}
		binding.Gesture = *req.Gesture
	}
	if req.Keyword != nil {
		binding.Keyword = *req.Keyword
	}
	if req.Interactable != nil {
		binding.Interactable = *req.Interactable
	}
	if req.PluginName != "" {
		binding.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		binding.ActionName = req.ActionName
	}
	if req.Config != nil {
		binding.Config = store.NormalizeConfig(req.Config)
	}
	if req.Enabled != nil {
		binding.Enabled = *req.Enabled
	}

	conflict, err := h.conflicts(binding)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing bindings")
		return
	}
	if conflict {
		writeError(w, http.StatusConflict, "Command already bound in this state")
		return
	}

	if err := h.store.Bindings().Update(binding); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}
	h.reload(r)

	writeJSON(w, http.StatusOK, toBindingResponse(binding))
}

// delete handles DELETE /api/bindings/{id} and removes a binding.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Bindings().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}
	h.reload(r)

	w.WriteHeader(http.StatusNoContent)
}
