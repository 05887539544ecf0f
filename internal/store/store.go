// Package store provides journal backends for TriagePipe.
//
// The journal records per-request analysis outcomes and classifier emergency
// events. It never stores raw symptom text; requests are identified by their
// content fingerprint. An in-memory journal is the default; SQLite and
// PostgreSQL backends are selected by DSN.
package store

import (
	"strings"
	"sync"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// defaultQueryLimit bounds journal reads when the caller does not supply a
// positive limit.
const defaultQueryLimit = 100

// Journal records analysis outcomes and emergency events.
type Journal interface {
	// AddOutcome records the terminal outcome of one analysis request.
	AddOutcome(rec models.OutcomeRecord) error

	// GetOutcomes returns up to limit outcomes, newest first. A non-positive
	// limit falls back to a bounded default.
	GetOutcomes(limit int) ([]models.OutcomeRecord, error)

	// AddEmergencyEvent records a classifier emergency detection.
	AddEmergencyEvent(ev models.EmergencyEvent) error

	// GetEmergencyEvents returns up to limit events, newest first. A
	// non-positive limit falls back to a bounded default.
	GetEmergencyEvents(limit int) ([]models.EmergencyEvent, error)

	// ClearOutcomes deletes all outcome records (for tests).
	ClearOutcomes() error

	// ClearEmergencyEvents deletes all emergency event records (for tests).
	ClearEmergencyEvents() error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for journal backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for journal creation.
type Option func(*Opts)

// WithDSN sets the backend DSN. The backend type is detected from its shape.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryJournal keeps records in process memory. It is the default backend
// when no DSN is configured.
type InMemoryJournal struct {
	mu        sync.Mutex
	outcomes  []models.OutcomeRecord
	incidents []models.EmergencyEvent
}

// NewInMemoryJournal creates an empty in-memory journal.
func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{}
}

func (s *InMemoryJournal) AddOutcome(rec models.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, rec)
	return nil
}

func (s *InMemoryJournal) GetOutcomes(limit int) ([]models.OutcomeRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.OutcomeRecord, 0, min(limit, len(s.outcomes)))
	for i := len(s.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.outcomes[i])
	}
	return out, nil
}

func (s *InMemoryJournal) AddEmergencyEvent(ev models.EmergencyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, ev)
	return nil
}

func (s *InMemoryJournal) GetEmergencyEvents(limit int) ([]models.EmergencyEvent, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.EmergencyEvent, 0, min(limit, len(s.incidents)))
	for i := len(s.incidents) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.incidents[i])
	}
	return out, nil
}

func (s *InMemoryJournal) ClearOutcomes() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = nil
	return nil
}

func (s *InMemoryJournal) ClearEmergencyEvents() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = nil
	return nil
}

// Close is a no-op for the in-memory journal.
func (s *InMemoryJournal) Close() error {
	return nil
}
