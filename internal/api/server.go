package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crossdev/syncmesh/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes(contextHandler *ContextHandler, eventServer *EventServer, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Apply rate limiting middleware to mutating endpoints
	rateLimitedAPI := api.PathPrefix("").Subrouter()
	rateLimitedAPI.Use(RateLimitMiddleware(rateLimiter))

	// Context endpoints (rate limited)
	rateLimitedAPI.HandleFunc("/contexts", contextHandler.CreateContext).Methods("POST")
	rateLimitedAPI.HandleFunc("/contexts/{id}/data", contextHandler.MutateContext).Methods("PUT")
	rateLimitedAPI.HandleFunc("/contexts/{id}/sync", contextHandler.EnqueueSync).Methods("POST")
	rateLimitedAPI.HandleFunc("/sessions", h.CreateSession).Methods("POST")

	// Context queries (not rate limited - frequent polling)
	api.HandleFunc("/contexts", contextHandler.ListContexts).Methods("GET")
	api.HandleFunc("/contexts/{id}", contextHandler.GetContext).Methods("GET")
	api.HandleFunc("/contexts/{id}/state", contextHandler.ReportState).Methods("POST")

	// Device endpoints
	api.HandleFunc("/devices/local", h.RegisterLocalDevice).Methods("POST")
	api.HandleFunc("/devices/discover", h.DiscoverDevices).Methods("POST")
	api.HandleFunc("/devices", h.ListDevices).Methods("GET")
	api.HandleFunc("/devices/{id}", h.GetDevice).Methods("GET")

	// Session and conflict endpoints
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/conflicts", h.ListConflicts).Methods("GET")
	api.HandleFunc("/conflicts/{id}/resolve", h.ResolveConflict).Methods("POST")

	// Recommendations
	api.HandleFunc("/recommendations", h.Recommend).Methods("GET")

	// Scheduler controls (driven by environment signals)
	api.HandleFunc("/sync/pause", h.PauseSync).Methods("POST")
	api.HandleFunc("/sync/resume", h.ResumeSync).Methods("POST")

	// Sync outcome event feed
	api.HandleFunc("/events", eventServer.HandleEvents).Methods("GET")

	// CORS middleware
	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
