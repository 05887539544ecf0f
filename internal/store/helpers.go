package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// encodeKeywords serializes the matched keyword list for a text column.
// Empty lists are stored as NULL.
func encodeKeywords(keywords []string) (interface{}, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode keywords: %w", err)
	}
	return string(encoded), nil
}

// scanOutcome scans an OutcomeRecord from sql.Rows. Column order matches the
// SELECT in both backends.
func scanOutcome(rows *sql.Rows) (models.OutcomeRecord, error) {
	var rec models.OutcomeRecord
	var status, level string
	err := rows.Scan(
		&rec.RequestID, &rec.Fingerprint, &status, &level,
		&rec.ProcessingTimeMS, &rec.CacheHit, &rec.CreatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scan outcome failed: %w", err)
	}
	rec.Status = models.AnalysisStatus(status)
	if parsed, err := models.ParseEmergencyLevel(level); err == nil {
		rec.EmergencyLevel = parsed
	}
	return rec, nil
}

// scanEmergencyEvent scans an EmergencyEvent from sql.Rows.
func scanEmergencyEvent(rows *sql.Rows) (models.EmergencyEvent, error) {
	var ev models.EmergencyEvent
	var level string
	var keywordsJSON sql.NullString
	err := rows.Scan(&ev.Fingerprint, &level, &keywordsJSON, &ev.CreatedAt)
	if err != nil {
		return ev, fmt.Errorf("scan emergency event failed: %w", err)
	}
	if parsed, err := models.ParseEmergencyLevel(level); err == nil {
		ev.Level = parsed
	}
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &ev.Keywords); err != nil {
			return ev, fmt.Errorf("failed to decode keywords: %w", err)
		}
	}
	return ev, nil
}
