// Package handlers provides HTTP request handlers for the sentinel API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/telhawk-systems/sentinel/internal/alerting"
	"github.com/telhawk-systems/sentinel/internal/engine"
	"github.com/telhawk-systems/sentinel/internal/httputil"
	"github.com/telhawk-systems/sentinel/internal/incidents"
	"github.com/telhawk-systems/sentinel/internal/models"
)

// Handler provides HTTP handlers for the sentinel service
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a new Handler instance
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// extractIDFromPath extracts an ID from a URL path like /api/v1/alerts/{id}/ack
func extractIDFromPath(path, prefix string) string {
	remaining := strings.TrimPrefix(path, prefix)
	remaining = strings.TrimPrefix(remaining, "/")

	parts := strings.Split(remaining, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Service: "sentinel",
	})
}

// RecordEvent handles POST /api/v1/events. The event is queued for
// asynchronous processing, so acceptance is reported with 202.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" || req.Title == "" || req.Source == "" {
		httputil.WriteError(w, http.StatusBadRequest, "type, title and source are required")
		return
	}
	if !req.Severity.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "invalid severity")
		return
	}

	id := h.engine.RecordEvent(req.Type, req.Severity, req.Title, req.Description, req.Source, req.Metadata)
	httputil.WriteJSON(w, http.StatusAccepted, models.RecordEventResponse{EventID: id})
}

// ThreatLevel handles GET /api/v1/threat-level
func (h *Handler) ThreatLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.engine.GetCurrentThreatLevel())
}

// Alerts handles GET /api/v1/alerts with an optional severity filter.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	severity := models.Severity(r.URL.Query().Get("severity"))
	if severity != "" && !severity.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "invalid severity filter")
		return
	}

	alerts := h.engine.GetActiveAlerts()
	filtered := make([]models.SecurityAlert, 0, len(alerts))
	for _, a := range alerts {
		if severity != "" && a.Severity != severity {
			continue
		}
		filtered = append(filtered, a)
	}
	httputil.WriteJSON(w, http.StatusOK, filtered)
}

// AcknowledgeAlert handles POST /api/v1/alerts/{id}/ack
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/alerts")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "alert id is required")
		return
	}

	var req models.AcknowledgeAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AcknowledgedBy == "" {
		httputil.WriteError(w, http.StatusBadRequest, "acknowledged_by is required")
		return
	}

	alert, err := h.engine.AcknowledgeAlert(r.Context(), id, req.AcknowledgedBy)
	if err != nil {
		h.writeEngineError(w, err, id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// Incidents handles GET /api/v1/incidents with optional severity and status
// filters.
func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	severity := models.Severity(r.URL.Query().Get("severity"))
	if severity != "" && !severity.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "invalid severity filter")
		return
	}
	status := models.IncidentStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	active := h.engine.GetActiveIncidents()
	filtered := make([]models.SecurityIncident, 0, len(active))
	for _, i := range active {
		if severity != "" && i.Severity != severity {
			continue
		}
		if status != "" && i.Status != status {
			continue
		}
		filtered = append(filtered, i)
	}
	httputil.WriteJSON(w, http.StatusOK, filtered)
}

// UpdateIncidentStatus handles PUT /api/v1/incidents/{id}/status
func (h *Handler) UpdateIncidentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/incidents")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "incident id is required")
		return
	}

	var req models.UpdateIncidentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "invalid status")
		return
	}

	incident, err := h.engine.UpdateIncidentStatus(r.Context(), id, req.Status, req.UpdatedBy)
	if err != nil {
		h.writeEngineError(w, err, id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, incident)
}

// AssignIncident handles PUT /api/v1/incidents/{id}/assignee
func (h *Handler) AssignIncident(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/incidents")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "incident id is required")
		return
	}

	var req models.AssignIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Assignee == "" {
		httputil.WriteError(w, http.StatusBadRequest, "assignee is required")
		return
	}

	incident, err := h.engine.AssignIncident(r.Context(), id, req.Assignee, req.UpdatedBy)
	if err != nil {
		h.writeEngineError(w, err, id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, incident)
}

// writeEngineError maps engine errors to HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, alerting.ErrNotFound), errors.Is(err, incidents.ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, models.ErrorResponse{
			Error:      "not_found",
			Message:    err.Error(),
			ResourceID: id,
		})
	case errors.Is(err, incidents.ErrInvalidTransition):
		httputil.WriteJSON(w, http.StatusConflict, models.ErrorResponse{
			Error:      "invalid_transition",
			Message:    err.Error(),
			ResourceID: id,
		})
	case errors.Is(err, engine.ErrPersistence):
		httputil.WriteJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "persistence_failure",
			Message: err.Error(),
		})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}
