// Package sqlite is the durable IncidentStore backed by an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/replaystack/incident-replay/internal/domain"
	"github.com/replaystack/incident-replay/internal/storage"
)

// Store is a SQLite implementation of IncidentStore.
type Store struct {
	db *sql.DB
}

var _ storage.IncidentStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			erp_reference TEXT NOT NULL UNIQUE,
			incident_type TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			analysis_source TEXT,
			confidence_score REAL NOT NULL DEFAULT 0,
			replay_summary TEXT,
			replay_details TEXT,
			replay_conclusion TEXT,
			replayed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// CreateIncident inserts a new incident. The ERP reference is unique:
// re-reporting the same document is a conflict, not a second incident.
func (s *Store) CreateIncident(ctx context.Context, inc *domain.Incident) error {
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO incidents
	          (id, erp_reference, incident_type, description, status, analysis_source,
	           confidence_score, replay_summary, replay_details, replay_conclusion, replayed_at, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		inc.ID, inc.ERPReference, inc.IncidentType, inc.Description,
		string(inc.Status), string(inc.AnalysisSource), inc.ConfidenceScore,
		inc.ReplaySummary, inc.ReplayDetails, inc.ReplayConclusion,
		inc.ReplayedAt, inc.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrDuplicateReference
		}
		return fmt.Errorf("failed to create incident: %w", err)
	}

	return nil
}

const incidentColumns = `id, erp_reference, incident_type, description, status, analysis_source,
	confidence_score, replay_summary, replay_details, replay_conclusion, replayed_at, created_at`

// GetIncident fetches an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = ?`
	return s.queryOne(ctx, query, id)
}

// GetByReference fetches an incident by its ERP document reference.
func (s *Store) GetByReference(ctx context.Context, erpReference string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE erp_reference = ?`
	return s.queryOne(ctx, query, erpReference)
}

func (s *Store) queryOne(ctx context.Context, query string, arg any) (*domain.Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return inc, nil
}

// ListIncidents returns incidents newest-first, optionally filtered by status.
func (s *Store) ListIncidents(ctx context.Context, opts storage.ListOptions) ([]*domain.Incident, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}

	return incidents, rows.Err()
}

// UpdateResolution writes the outcome of a resolution attempt onto an
// existing incident row.
func (s *Store) UpdateResolution(ctx context.Context, inc *domain.Incident) error {
	query := `UPDATE incidents SET
	          status = ?, analysis_source = ?, confidence_score = ?,
	          replay_summary = ?, replay_details = ?, replay_conclusion = ?, replayed_at = ?
	          WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(inc.Status), string(inc.AnalysisSource), inc.ConfidenceScore,
		inc.ReplaySummary, inc.ReplayDetails, inc.ReplayConclusion, inc.ReplayedAt,
		inc.ID)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*domain.Incident, error) {
	var inc domain.Incident
	var source sql.NullString
	var summary, details, conclusion sql.NullString
	var replayedAt sql.NullTime

	err := row.Scan(
		&inc.ID, &inc.ERPReference, &inc.IncidentType, &inc.Description,
		&inc.Status, &source, &inc.ConfidenceScore,
		&summary, &details, &conclusion, &replayedAt, &inc.CreatedAt)
	if err != nil {
		return nil, err
	}

	inc.AnalysisSource = domain.AnalysisSource(source.String)
	inc.ReplaySummary = summary.String
	inc.ReplayDetails = details.String
	inc.ReplayConclusion = conclusion.String
	if replayedAt.Valid {
		t := replayedAt.Time
		inc.ReplayedAt = &t
	}

	return &inc, nil
}
