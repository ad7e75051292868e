package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/station-collector/internal/observability"
)

// NewRouter wires the query API. /health and /metrics bypass rate limiting
// and the request timeout.
func NewRouter(h *Handler, limiter *rate.Limiter, requestTimeout time.Duration, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	stations := router.PathPrefix("/stations").Subrouter()
	stations.Use(RateLimitMiddleware(limiter))
	if requestTimeout > 0 {
		stations.Use(TimeoutMiddleware(requestTimeout))
	}
	stations.HandleFunc("", h.ListStations).Methods("GET")
	stations.HandleFunc("/{id}", h.GetStation).Methods("GET")
	stations.HandleFunc("/{id}/observations", h.ListObservations).Methods("GET")
	stations.HandleFunc("/{id}/observations/latest", h.GetLatestObservation).Methods("GET")
	return router
}
