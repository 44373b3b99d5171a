// Package server provides HTTP server setup for the sentinel service.
package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/sentinel/internal/handlers"
	"github.com/telhawk-systems/sentinel/internal/middleware"
)

// NewRouter constructs a ServeMux with sentinel API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	// Health and metrics endpoints
	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	// Event ingestion
	mux.HandleFunc("/api/v1/events", h.RecordEvent)

	// Threat level
	mux.HandleFunc("/api/v1/threat-level", h.ThreatLevel)

	// Alert routes
	mux.HandleFunc("/api/v1/alerts", h.Alerts)
	mux.HandleFunc("/api/v1/alerts/", alertRouteHandler(h))

	// Incident routes
	mux.HandleFunc("/api/v1/incidents", h.Incidents)
	mux.HandleFunc("/api/v1/incidents/", incidentRouteHandler(h))

	return middleware.RequestID(mux)
}

// alertRouteHandler routes /api/v1/alerts/{id}/* requests to appropriate handlers
func alertRouteHandler(h *handlers.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ack"):
			h.AcknowledgeAlert(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

// incidentRouteHandler routes /api/v1/incidents/{id}/* requests to appropriate handlers
func incidentRouteHandler(h *handlers.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status"):
			h.UpdateIncidentStatus(w, r)
		case strings.HasSuffix(r.URL.Path, "/assignee"):
			h.AssignIncident(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}
