package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// SetupRoutes registers the REST endpoints on router
func SetupRoutes(router *mux.Router, handlers *Handlers) {
	// API version prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Job management endpoints
	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("", handlers.SubmitJob).Methods(http.MethodPost)
	jobs.HandleFunc("", handlers.ListJobs).Methods(http.MethodGet)
	jobs.HandleFunc("/{jobId}", handlers.GetJob).Methods(http.MethodGet)
	jobs.HandleFunc("/{jobId}", handlers.DeleteJob).Methods(http.MethodDelete)
	jobs.HandleFunc("/{jobId}/result", handlers.GetJobResult).Methods(http.MethodGet)

	// Health check endpoint
	api.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
}

// NewRouter builds the complete HTTP handler: routes, request logging, panic
// recovery and CORS for the given origins.
func NewRouter(handlers *Handlers, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, handlers)

	router.Use(LoggingMiddleware)
	router.Use(RecoveryMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})
	return c.Handler(router)
}
