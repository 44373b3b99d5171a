package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/sentinel/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// ArchiveAlert stores an acknowledged alert for audit.
func (r *PostgresRepository) ArchiveAlert(ctx context.Context, alert *models.SecurityAlert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal alert metadata: %w", err)
	}

	query := `
		INSERT INTO archived_alerts
			(id, type, severity, title, description, source, metadata,
			 created_at, acknowledged_by, acknowledged_at, escalated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		alert.ID, alert.Type, alert.Severity, alert.Title, alert.Description,
		alert.Source, metadata, alert.Timestamp,
		alert.AcknowledgedBy, alert.AcknowledgedAt, alert.Escalated,
	)
	if err != nil {
		return fmt.Errorf("failed to archive alert: %w", err)
	}

	return nil
}

// ArchiveIncident stores a closed incident for audit.
func (r *PostgresRepository) ArchiveIncident(ctx context.Context, incident *models.SecurityIncident) error {
	evidence, err := json.Marshal(incident.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal incident evidence: %w", err)
	}
	actions, err := json.Marshal(incident.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal incident actions: %w", err)
	}

	query := `
		INSERT INTO archived_incidents
			(id, type, severity, status, title, description, priority,
			 detected_at, updated_at, resolved_at, assignee, evidence, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			resolved_at = EXCLUDED.resolved_at,
			assignee = EXCLUDED.assignee,
			actions = EXCLUDED.actions
	`

	_, err = r.pool.Exec(ctx, query,
		incident.ID, incident.Type, incident.Severity, incident.Status,
		incident.Title, incident.Description, incident.Priority,
		incident.DetectedAt, incident.UpdatedAt, incident.ResolvedAt,
		incident.Assignee, evidence, actions,
	)
	if err != nil {
		return fmt.Errorf("failed to archive incident: %w", err)
	}

	return nil
}

// GetArchivedAlert retrieves an archived alert by ID
func (r *PostgresRepository) GetArchivedAlert(ctx context.Context, id string) (*models.SecurityAlert, error) {
	query := `
		SELECT id, type, severity, title, description, source, metadata,
		       created_at, acknowledged_by, acknowledged_at, escalated
		FROM archived_alerts
		WHERE id = $1
	`

	alert := &models.SecurityAlert{Acknowledged: true}
	var metadata []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&alert.ID, &alert.Type, &alert.Severity, &alert.Title, &alert.Description,
		&alert.Source, &metadata, &alert.Timestamp,
		&alert.AcknowledgedBy, &alert.AcknowledgedAt, &alert.Escalated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get archived alert: %w", err)
	}

	if err := json.Unmarshal(metadata, &alert.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert metadata: %w", err)
	}

	return alert, nil
}

// GetArchivedIncident retrieves an archived incident by ID
func (r *PostgresRepository) GetArchivedIncident(ctx context.Context, id string) (*models.SecurityIncident, error) {
	query := `
		SELECT id, type, severity, status, title, description, priority,
		       detected_at, updated_at, resolved_at, assignee, evidence, actions
		FROM archived_incidents
		WHERE id = $1
	`

	incident := &models.SecurityIncident{}
	var evidence, actions []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&incident.ID, &incident.Type, &incident.Severity, &incident.Status,
		&incident.Title, &incident.Description, &incident.Priority,
		&incident.DetectedAt, &incident.UpdatedAt, &incident.ResolvedAt,
		&incident.Assignee, &evidence, &actions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get archived incident: %w", err)
	}

	if err := json.Unmarshal(evidence, &incident.Evidence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident evidence: %w", err)
	}
	if err := json.Unmarshal(actions, &incident.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident actions: %w", err)
	}

	return incident, nil
}

// ListArchivedAlerts retrieves the most recently archived alerts
func (r *PostgresRepository) ListArchivedAlerts(ctx context.Context, limit int) ([]*models.SecurityAlert, error) {
	query := `
		SELECT id, type, severity, title, description, source, metadata,
		       created_at, acknowledged_by, acknowledged_at, escalated
		FROM archived_alerts
		ORDER BY acknowledged_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.SecurityAlert
	for rows.Next() {
		alert := &models.SecurityAlert{Acknowledged: true}
		var metadata []byte
		if err := rows.Scan(
			&alert.ID, &alert.Type, &alert.Severity, &alert.Title, &alert.Description,
			&alert.Source, &metadata, &alert.Timestamp,
			&alert.AcknowledgedBy, &alert.AcknowledgedAt, &alert.Escalated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan archived alert: %w", err)
		}
		if err := json.Unmarshal(metadata, &alert.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert metadata: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// ListArchivedIncidents retrieves the most recently archived incidents
func (r *PostgresRepository) ListArchivedIncidents(ctx context.Context, limit int) ([]*models.SecurityIncident, error) {
	query := `
		SELECT id, type, severity, status, title, description, priority,
		       detected_at, updated_at, resolved_at, assignee, evidence, actions
		FROM archived_incidents
		ORDER BY updated_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.SecurityIncident
	for rows.Next() {
		incident := &models.SecurityIncident{}
		var evidence, actions []byte
		if err := rows.Scan(
			&incident.ID, &incident.Type, &incident.Severity, &incident.Status,
			&incident.Title, &incident.Description, &incident.Priority,
			&incident.DetectedAt, &incident.UpdatedAt, &incident.ResolvedAt,
			&incident.Assignee, &evidence, &actions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan archived incident: %w", err)
		}
		if err := json.Unmarshal(evidence, &incident.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal incident evidence: %w", err)
		}
		if err := json.Unmarshal(actions, &incident.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal incident actions: %w", err)
		}
		incidents = append(incidents, incident)
	}

	return incidents, rows.Err()
}

// Close releases the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
