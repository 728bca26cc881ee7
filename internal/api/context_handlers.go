package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crossdev/syncmesh/internal/engine"
	"github.com/crossdev/syncmesh/pkg/models"
)

// ContextHandler holds dependencies for context HTTP handlers.
type ContextHandler struct {
	engine *engine.Engine
}

// NewContextHandler creates a new context HTTP handler.
func NewContextHandler(eng *engine.Engine) *ContextHandler {
	return &ContextHandler{engine: eng}
}

// CreateContext handles POST /v1/contexts
func (h *ContextHandler) CreateContext(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, err := h.engine.CreateContext(req.UserID, req.Type, req.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ctx)
}

// GetContext handles GET /v1/contexts/{id}
func (h *ContextHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx, ok := h.engine.GetContext(vars["id"])
	if !ok {
		http.Error(w, "context not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ctx)
}

// ListContexts handles GET /v1/contexts?userId=
func (h *ContextHandler) ListContexts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	contexts := h.engine.GetUserContexts(userID)
	if contexts == nil {
		contexts = []*models.CrossDeviceContext{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contexts)
}

// MutateContext handles PUT /v1/contexts/{id}/data
func (h *ContextHandler) MutateContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req models.MutateContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, err := h.engine.ApplyMutation(vars["id"], req.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ctx)
}

// EnqueueSync handles POST /v1/contexts/{id}/sync
func (h *ContextHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req models.EnqueueSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.TargetDeviceIDs) == 0 {
		http.Error(w, "targetDeviceIds is required", http.StatusBadRequest)
		return
	}

	if _, ok := h.engine.GetContext(vars["id"]); !ok {
		http.Error(w, "context not found", http.StatusNotFound)
		return
	}

	jobIDs := h.engine.Enqueue(vars["id"], req.TargetDeviceIDs, req.Priority)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobIds": jobIDs,
	})
}

// ReportState handles POST /v1/contexts/{id}/state
func (h *ContextHandler) ReportState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req models.ReportStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	conflict, err := h.engine.ReportDeviceState(vars["id"], req.DeviceID, req.Version, req.Data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if conflict != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"conflict": conflict,
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conflict": nil,
	})
}
