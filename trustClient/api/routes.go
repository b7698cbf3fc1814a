package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// API v1 endpoints
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/validators", s.handleValidators).Methods(http.MethodGet)
	v1.HandleFunc("/validators/chosen", s.handleChosen).Methods(http.MethodGet)
	v1.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	v1.HandleFunc("/sources", s.handleAddSource).Methods(http.MethodPost)
	v1.HandleFunc("/sources/{id}", s.handleRemoveSource).Methods(http.MethodDelete)
	v1.HandleFunc("/sources/{id}/refresh", s.handleRefreshSource).Methods(http.MethodPost)
	v1.HandleFunc("/sources/{id}/attempts", s.handleAttempts).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}
