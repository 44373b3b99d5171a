// Package models provides data models for the sentinel engine.
package models

import "time"

// Severity classifies how serious an event, alert, or incident is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the defined severity values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// EventType enumerates the kinds of security events the engine ingests.
type EventType string

const (
	EventLoginAttempt        EventType = "login_attempt"
	EventSuspiciousActivity  EventType = "suspicious_activity"
	EventRateLimitViolation  EventType = "rate_limit_violation"
	EventDataAccess          EventType = "data_access"
	EventPrivilegeEscalation EventType = "privilege_escalation"
	EventDataBreach          EventType = "data_breach"
	EventMalwareDetection    EventType = "malware_detection"
	EventNetworkAnomaly      EventType = "network_anomaly"
	EventConfigurationChange EventType = "configuration_change"
	EventSystemError         EventType = "system_error"
)

// SecurityEvent is an immutable fact about a security-relevant occurrence.
// Events are created once by RecordEvent and never mutated.
type SecurityEvent struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	Severity    Severity               `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Source      string                 `json:"source"` // user id, IP, or service name
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Failed reports whether the event carries a failure outcome in its metadata.
// Both the "outcome" string convention and the "success" boolean convention
// used by reporting applications are recognized.
func (e *SecurityEvent) Failed() bool {
	if e.Metadata == nil {
		return false
	}
	if outcome, ok := e.Metadata["outcome"].(string); ok {
		return outcome == "failure" || outcome == "failed"
	}
	if success, ok := e.Metadata["success"].(bool); ok {
		return !success
	}
	return false
}

// ThreatLevel is the process-wide decaying aggregate threat posture.
type ThreatLevel struct {
	Level     Severity  `json:"level"` // derived from Score, never set directly
	Score     float64   `json:"score"`
	Factors   []string  `json:"factors"` // pattern names accumulated since last reset
	Timestamp time.Time `json:"timestamp"`
}

// SecurityAlert is a point-in-time notice requiring human acknowledgment.
// Alerts have no lifecycle beyond unacknowledged -> acknowledged.
type SecurityAlert struct {
	ID             string                 `json:"id"`
	Type           EventType              `json:"type"`
	Severity       Severity               `json:"severity"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Acknowledged   bool                   `json:"acknowledged"`
	AcknowledgedBy *string                `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
	Escalated      bool                   `json:"escalated"`
}

// IncidentStatus is the state of an incident within the response lifecycle.
type IncidentStatus string

const (
	StatusOpen          IncidentStatus = "open"
	StatusInvestigating IncidentStatus = "investigating"
	StatusContained     IncidentStatus = "contained"
	StatusResolved      IncidentStatus = "resolved"
	StatusClosed        IncidentStatus = "closed"
)

// Valid reports whether s is one of the defined incident statuses.
func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInvestigating, StatusContained, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ActionType classifies a step taken within an incident.
type ActionType string

const (
	ActionInvestigation ActionType = "investigation"
	ActionContainment   ActionType = "containment"
	ActionRemediation   ActionType = "remediation"
	ActionNotification  ActionType = "notification"
	ActionEscalation    ActionType = "escalation"
)

// ActionStatus is the outcome of an incident action.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// IncidentAction is a logged step within an incident. Actions are append-only.
type IncidentAction struct {
	ID          string       `json:"id"`
	Type        ActionType   `json:"type"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
	PerformedBy string       `json:"performed_by"`
	Status      ActionStatus `json:"status"`
	Result      string       `json:"result,omitempty"`
}

// SecurityIncident is a stateful case driven through the response state machine.
type SecurityIncident struct {
	ID              string           `json:"id"`
	Type            EventType        `json:"type"`
	Severity        Severity         `json:"severity"`
	Status          IncidentStatus   `json:"status"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	DetectedAt      time.Time        `json:"detected_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	AffectedUsers   []string         `json:"affected_users,omitempty"`
	AffectedSystems []string         `json:"affected_systems,omitempty"`
	Evidence        []SecurityEvent  `json:"evidence"` // always at least one event
	Actions         []IncidentAction `json:"actions"`
	Assignee        *string          `json:"assignee,omitempty"`
	Priority        int              `json:"priority"` // 1 is highest
}

// Active reports whether the incident still requires attention.
func (i *SecurityIncident) Active() bool {
	return i.Status != StatusClosed
}

// RecordEventRequest is the API request to record a new security event.
type RecordEventRequest struct {
	Type        EventType              `json:"type"`
	Severity    Severity               `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Source      string                 `json:"source"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// RecordEventResponse is returned after an event is accepted for processing.
type RecordEventResponse struct {
	EventID string `json:"event_id"`
}

// AcknowledgeAlertRequest is the API request to acknowledge an alert.
type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// UpdateIncidentStatusRequest is the API request to advance an incident.
type UpdateIncidentStatusRequest struct {
	Status    IncidentStatus `json:"status"`
	UpdatedBy string         `json:"updated_by"`
}

// AssignIncidentRequest is the API request to set an incident's assignee.
type AssignIncidentRequest struct {
	Assignee  string `json:"assignee"`
	UpdatedBy string `json:"updated_by"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
