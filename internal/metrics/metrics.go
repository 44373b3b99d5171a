package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline metrics
	EventsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_events_recorded_total",
			Help: "Total number of security events accepted for processing",
		},
	)

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_events_processed_total",
			Help: "Total number of security events drained through the pipeline",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_queue_depth",
			Help: "Current depth of the ingestion queue",
		},
	)

	PatternsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_patterns_detected_total",
			Help: "Total number of behavioral patterns detected",
		},
		[]string{"pattern"},
	)

	// Threat scoring metrics
	ThreatScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_threat_score",
			Help: "Current aggregate threat score",
		},
	)

	// Alert and incident metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_created_total",
			Help: "Total number of security alerts created",
		},
		[]string{"severity"},
	)

	IncidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_incidents_created_total",
			Help: "Total number of security incidents created",
		},
		[]string{"severity"},
	)

	ContainmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_containment_failures_total",
			Help: "Total number of failed containment actions",
		},
	)

	// Scheduler metrics
	DrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_drain_duration_seconds",
			Help:    "Duration of ingestion queue drain ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_ticks_skipped_total",
			Help: "Total number of scheduler ticks skipped because the previous tick was still running",
		},
		[]string{"task"},
	)

	PersistenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_persistence_errors_total",
			Help: "Total number of background persistence failures",
		},
	)
)
