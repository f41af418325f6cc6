package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route of the API
func NewRouter(handlers *Handlers) *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")

	// API routes
	apiRouter := router.PathPrefix("/api").Subrouter()

	// Runs
	apiRouter.HandleFunc("/runs", handlers.StartRun).Methods("POST")
	apiRouter.HandleFunc("/runs", handlers.ListRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}", handlers.GetRun).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/cancel", handlers.CancelRun).Methods("POST")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/runs/{id}/stream", handlers.StreamRunUpdates).Methods("GET")

	// Snapshots
	apiRouter.HandleFunc("/runs/{id}/artifacts/{kind}", handlers.ServeArtifact).Methods("GET")

	return router
}
