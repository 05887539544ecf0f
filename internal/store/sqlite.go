// Package store provides journal backends for TriagePipe.
//
// This file implements the SQLite-backed journal.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/TriagePipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite journal configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal creates a new SQLite journal with the given DSN.
// The DSN is a file path to the SQLite database file; the containing
// directory is created if missing.
func NewSQLiteJournal(opts ...Option) (*SQLiteJournal, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteJournal invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteJournal DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteJournal{db: db}, nil
}

func (s *SQLiteJournal) AddOutcome(rec models.OutcomeRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO outcomes (request_id, fingerprint, status, emergency_level, processing_time_ms, cache_hit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Fingerprint, string(rec.Status), rec.EmergencyLevel.String(),
		rec.ProcessingTimeMS, rec.CacheHit, rec.CreatedAt)
	if err != nil {
		slog.Error("SQLiteJournal AddOutcome failed", "error", err, "requestID", rec.RequestID)
		return fmt.Errorf("failed to insert outcome %s: %w", rec.RequestID, err)
	}
	slog.Debug("SQLiteJournal AddOutcome succeeded", "requestID", rec.RequestID, "status", rec.Status)
	return nil
}

func (s *SQLiteJournal) GetOutcomes(limit int) ([]models.OutcomeRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := s.db.Query(
		`SELECT request_id, fingerprint, status, emergency_level, processing_time_ms, cache_hit, created_at
		 FROM outcomes ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteJournal GetOutcomes query failed", "error", err)
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.OutcomeRecord
	for rows.Next() {
		rec, err := scanOutcome(rows)
		if err != nil {
			slog.Error("SQLiteJournal GetOutcomes scan failed", "error", err)
			return nil, err
		}
		outcomes = append(outcomes, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteJournal GetOutcomes rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate outcome rows: %w", err)
	}
	slog.Debug("SQLiteJournal GetOutcomes succeeded", "count", len(outcomes))
	return outcomes, nil
}

func (s *SQLiteJournal) AddEmergencyEvent(ev models.EmergencyEvent) error {
	keywordsJSON, err := encodeKeywords(ev.Keywords)
	if err != nil {
		slog.Error("SQLiteJournal AddEmergencyEvent keyword encoding failed", "error", err, "fingerprint", ev.Fingerprint)
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO emergency_events (fingerprint, level, keywords, created_at) VALUES (?, ?, ?, ?)`,
		ev.Fingerprint, ev.Level.String(), keywordsJSON, ev.CreatedAt)
	if err != nil {
		slog.Error("SQLiteJournal AddEmergencyEvent failed", "error", err, "fingerprint", ev.Fingerprint)
		return fmt.Errorf("failed to insert emergency event %s: %w", ev.Fingerprint, err)
	}
	slog.Debug("SQLiteJournal AddEmergencyEvent succeeded", "fingerprint", ev.Fingerprint, "level", ev.Level)
	return nil
}

func (s *SQLiteJournal) GetEmergencyEvents(limit int) ([]models.EmergencyEvent, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := s.db.Query(
		`SELECT fingerprint, level, keywords, created_at
		 FROM emergency_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteJournal GetEmergencyEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query emergency events: %w", err)
	}
	defer rows.Close()

	var events []models.EmergencyEvent
	for rows.Next() {
		ev, err := scanEmergencyEvent(rows)
		if err != nil {
			slog.Error("SQLiteJournal GetEmergencyEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteJournal GetEmergencyEvents rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate emergency event rows: %w", err)
	}
	slog.Debug("SQLiteJournal GetEmergencyEvents succeeded", "count", len(events))
	return events, nil
}

// ClearOutcomes deletes all records in the outcomes table (for tests).
func (s *SQLiteJournal) ClearOutcomes() error {
	_, err := s.db.Exec("DELETE FROM outcomes")
	if err != nil {
		slog.Error("SQLiteJournal ClearOutcomes failed", "error", err)
		return err
	}
	slog.Debug("SQLiteJournal ClearOutcomes succeeded")
	return nil
}

// ClearEmergencyEvents deletes all records in the emergency_events table (for tests).
func (s *SQLiteJournal) ClearEmergencyEvents() error {
	_, err := s.db.Exec("DELETE FROM emergency_events")
	if err != nil {
		slog.Error("SQLiteJournal ClearEmergencyEvents failed", "error", err)
		return err
	}
	slog.Debug("SQLiteJournal ClearEmergencyEvents succeeded")
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteJournal) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}
