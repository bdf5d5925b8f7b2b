// Package memory is an in-memory IncidentStore for tests and local runs
// that should not touch disk.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/replaystack/incident-replay/internal/domain"
	"github.com/replaystack/incident-replay/internal/storage"
)

// Store is a thread-safe in-memory IncidentStore.
type Store struct {
	mu          sync.RWMutex
	incidents   map[string]*domain.Incident
	byReference map[string]string
}

var _ storage.IncidentStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		incidents:   make(map[string]*domain.Incident),
		byReference: make(map[string]string),
	}
}

func (s *Store) CreateIncident(_ context.Context, inc *domain.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReference[inc.ERPReference]; exists {
		return storage.ErrDuplicateReference
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now().UTC()
	}

	clone := *inc
	s.incidents[inc.ID] = &clone
	s.byReference[inc.ERPReference] = inc.ID
	return nil
}

func (s *Store) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *inc
	return &clone, nil
}

func (s *Store) GetByReference(_ context.Context, erpReference string) (*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReference[erpReference]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *s.incidents[id]
	return &clone, nil
}

func (s *Store) ListIncidents(_ context.Context, opts storage.ListOptions) ([]*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var incidents []*domain.Incident
	for _, inc := range s.incidents {
		if opts.Status != "" && inc.Status != opts.Status {
			continue
		}
		clone := *inc
		incidents = append(incidents, &clone)
	}

	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].CreatedAt.After(incidents[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(incidents) {
		return nil, nil
	}
	incidents = incidents[offset:]
	if len(incidents) > limit {
		incidents = incidents[:limit]
	}

	return incidents, nil
}

func (s *Store) UpdateResolution(_ context.Context, inc *domain.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.incidents[inc.ID]
	if !ok {
		return storage.ErrNotFound
	}

	existing.Status = inc.Status
	existing.AnalysisSource = inc.AnalysisSource
	existing.ConfidenceScore = inc.ConfidenceScore
	existing.ReplaySummary = inc.ReplaySummary
	existing.ReplayDetails = inc.ReplayDetails
	existing.ReplayConclusion = inc.ReplayConclusion
	existing.ReplayedAt = inc.ReplayedAt
	return nil
}

func (s *Store) Close() error {
	return nil
}
