package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crossdev/syncmesh/internal/engine"
	"github.com/crossdev/syncmesh/pkg/models"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a new HTTP handler.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// RegisterLocalDevice handles POST /v1/devices/local
func (h *Handler) RegisterLocalDevice(w http.ResponseWriter, r *http.Request) {
	device, err := h.engine.RegisterLocalDevice()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(device)
}

// DiscoverDevices handles POST /v1/devices/discover
func (h *Handler) DiscoverDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.engine.Discover(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

// ListDevices handles GET /v1/devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []*models.Device
	if r.URL.Query().Get("online") == "true" {
		devices = h.engine.ListOnline()
	} else {
		devices = h.engine.Registry.List()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

// GetDevice handles GET /v1/devices/{id}
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	device, ok := h.engine.GetDevice(vars["id"])
	if !ok {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(device)
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := h.engine.CreateSyncSession(req.UserID, req.DeviceIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sess)
}

// ListSessions handles GET /v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.engine.GetActiveSyncSessions())
}

// ListConflicts handles GET /v1/conflicts
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := h.engine.GetSyncConflicts()
	if conflicts == nil {
		conflicts = []models.SyncConflict{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conflicts)
}

// ResolveConflict handles POST /v1/conflicts/{id}/resolve
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req models.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if !h.engine.Resolve(vars["id"], req.Resolution) {
		http.Error(w, "conflict not found or invalid resolution", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Recommend handles GET /v1/recommendations
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	contextType := models.ContextType(r.URL.Query().Get("contextType"))
	currentDevice := r.URL.Query().Get("deviceId")

	recs := h.engine.RecommendDevices(contextType, currentDevice)
	if recs == nil {
		recs = []models.DeviceRecommendation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// PauseSync handles POST /v1/sync/pause
func (h *Handler) PauseSync(w http.ResponseWriter, r *http.Request) {
	h.engine.Pause()
	w.WriteHeader(http.StatusNoContent)
}

// ResumeSync handles POST /v1/sync/resume
func (h *Handler) ResumeSync(w http.ResponseWriter, r *http.Request) {
	h.engine.Resume()
	w.WriteHeader(http.StatusNoContent)
}
