// Package repository provides the durable audit archive for acknowledged
// alerts and closed incidents.
package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/sentinel/internal/models"
)

var ErrNotFound = errors.New("archive record not found")

// Repository defines the interface for alert and incident archival
type Repository interface {
	ArchiveAlert(ctx context.Context, alert *models.SecurityAlert) error
	ArchiveIncident(ctx context.Context, incident *models.SecurityIncident) error

	GetArchivedAlert(ctx context.Context, id string) (*models.SecurityAlert, error)
	GetArchivedIncident(ctx context.Context, id string) (*models.SecurityIncident, error)
	ListArchivedAlerts(ctx context.Context, limit int) ([]*models.SecurityAlert, error)
	ListArchivedIncidents(ctx context.Context, limit int) ([]*models.SecurityIncident, error)

	Close() error
}
