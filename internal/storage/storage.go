// Package storage defines the persistence contract for incidents.
package storage

import (
	"context"
	"errors"

	"github.com/replaystack/incident-replay/internal/domain"
)

// ErrNotFound is returned when a lookup matches no incident.
var ErrNotFound = errors.New("incident not found")

// ErrDuplicateReference is returned when creating an incident whose ERP
// reference is already tracked.
var ErrDuplicateReference = errors.New("erp reference already tracked")

// ListOptions bounds incident listings.
type ListOptions struct {
	Status domain.Status
	Limit  int
	Offset int
}

// IncidentStore persists incidents and resolution outcomes.
type IncidentStore interface {
	CreateIncident(ctx context.Context, inc *domain.Incident) error
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	GetByReference(ctx context.Context, erpReference string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, opts ListOptions) ([]*domain.Incident, error)
	UpdateResolution(ctx context.Context, inc *domain.Incident) error
	Close() error
}
