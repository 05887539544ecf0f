// Package store provides journal backends for TriagePipe.
//
// This file implements the PostgreSQL-backed journal.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/TriagePipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresJournal struct {
	db *sql.DB
}

// NewPostgresJournal creates a new Postgres journal based on provided options.
func NewPostgresJournal(opts ...Option) (*PostgresJournal, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresJournal.NewPostgresJournal: creating Postgres journal", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresJournal DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresJournal{db: db}, nil
}

func (s *PostgresJournal) AddOutcome(rec models.OutcomeRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO outcomes (request_id, fingerprint, status, emergency_level, processing_time_ms, cache_hit, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.RequestID, rec.Fingerprint, string(rec.Status), rec.EmergencyLevel.String(),
		rec.ProcessingTimeMS, rec.CacheHit, rec.CreatedAt)
	if err != nil {
		slog.Error("PostgresJournal AddOutcome failed", "error", err, "requestID", rec.RequestID)
		return fmt.Errorf("failed to insert outcome %s: %w", rec.RequestID, err)
	}
	slog.Debug("PostgresJournal AddOutcome succeeded", "requestID", rec.RequestID, "status", rec.Status)
	return nil
}

func (s *PostgresJournal) GetOutcomes(limit int) ([]models.OutcomeRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := s.db.Query(
		`SELECT request_id, fingerprint, status, emergency_level, processing_time_ms, cache_hit, created_at
		 FROM outcomes ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresJournal GetOutcomes query failed", "error", err)
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.OutcomeRecord
	for rows.Next() {
		rec, err := scanOutcome(rows)
		if err != nil {
			slog.Error("PostgresJournal GetOutcomes scan failed", "error", err)
			return nil, err
		}
		outcomes = append(outcomes, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresJournal GetOutcomes rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate outcome rows: %w", err)
	}
	slog.Debug("PostgresJournal GetOutcomes succeeded", "count", len(outcomes))
	return outcomes, nil
}

func (s *PostgresJournal) AddEmergencyEvent(ev models.EmergencyEvent) error {
	keywordsJSON, err := encodeKeywords(ev.Keywords)
	if err != nil {
		slog.Error("PostgresJournal AddEmergencyEvent keyword encoding failed", "error", err, "fingerprint", ev.Fingerprint)
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO emergency_events (fingerprint, level, keywords, created_at) VALUES ($1, $2, $3, $4)`,
		ev.Fingerprint, ev.Level.String(), keywordsJSON, ev.CreatedAt)
	if err != nil {
		slog.Error("PostgresJournal AddEmergencyEvent failed", "error", err, "fingerprint", ev.Fingerprint)
		return fmt.Errorf("failed to insert emergency event %s: %w", ev.Fingerprint, err)
	}
	slog.Debug("PostgresJournal AddEmergencyEvent succeeded", "fingerprint", ev.Fingerprint, "level", ev.Level)
	return nil
}

func (s *PostgresJournal) GetEmergencyEvents(limit int) ([]models.EmergencyEvent, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := s.db.Query(
		`SELECT fingerprint, level, keywords, created_at
		 FROM emergency_events ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresJournal GetEmergencyEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query emergency events: %w", err)
	}
	defer rows.Close()

	var events []models.EmergencyEvent
	for rows.Next() {
		ev, err := scanEmergencyEvent(rows)
		if err != nil {
			slog.Error("PostgresJournal GetEmergencyEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresJournal GetEmergencyEvents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate emergency event rows: %w", err)
	}
	slog.Debug("PostgresJournal GetEmergencyEvents succeeded", "count", len(events))
	return events, nil
}

// ClearOutcomes deletes all records in the outcomes table (for tests).
func (s *PostgresJournal) ClearOutcomes() error {
	_, err := s.db.Exec("DELETE FROM outcomes")
	if err != nil {
		slog.Error("PostgresJournal ClearOutcomes failed", "error", err)
		return err
	}
	slog.Debug("PostgresJournal ClearOutcomes succeeded")
	return nil
}

// ClearEmergencyEvents deletes all records in the emergency_events table (for tests).
func (s *PostgresJournal) ClearEmergencyEvents() error {
	_, err := s.db.Exec("DELETE FROM emergency_events")
	if err != nil {
		slog.Error("PostgresJournal ClearEmergencyEvents failed", "error", err)
		return err
	}
	slog.Debug("PostgresJournal ClearEmergencyEvents succeeded")
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresJournal) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	} else {
		slog.Debug("Postgres database connection closed successfully")
	}
	return err
}
