package bus

// Subject constants for the sentinel message bus.
// Follow the pattern: {domain}.{resource}.{action}
const (
	// Notification subjects consumed by host delivery services.
	SubjectAlertsCreated    = "sentinel.alerts.created"
	SubjectAlertsEscalated  = "sentinel.alerts.escalated"
	SubjectIncidentsCreated = "sentinel.incidents.created"

	// Containment command subjects consumed by the enforcement platform.
	SubjectContainRateLimit = "sentinel.containment.rate_limit"
	SubjectContainBlock     = "sentinel.containment.block_source"
	SubjectContainTerminate = "sentinel.containment.terminate_sessions"
)
