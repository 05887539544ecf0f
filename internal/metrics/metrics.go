// Package metrics provides an in-process aggregator of per-request analysis
// observations.
package metrics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// Bounds for the retained record slice.
const (
	// DefaultMaxRecords is the record count that triggers pruning.
	DefaultMaxRecords = 10000
	// DefaultKeepRecords is how many of the most recent records survive a prune.
	DefaultKeepRecords = 5000
	// statsWindow is the trailing window for time-based aggregates.
	statsWindow = 24 * time.Hour
)

// Aggregator accumulates MetricRecords and serves aggregate statistics.
// Lifetime counters survive pruning; windowed aggregates are computed from
// the retained records. Safe for concurrent use.
type Aggregator struct {
	mu           sync.Mutex
	records      []models.MetricRecord
	maxRecords   int
	keepRecords  int
	totalCount   int64
	statusCounts map[models.AnalysisStatus]int64
	levelCounts  map[models.EmergencyLevel]int64
}

// New creates an Aggregator with the default pruning bounds.
func New() *Aggregator {
	return NewWithBounds(DefaultMaxRecords, DefaultKeepRecords)
}

// NewWithBounds creates an Aggregator with explicit pruning bounds. Invalid
// bounds fall back to the defaults.
func NewWithBounds(maxRecords, keepRecords int) *Aggregator {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if keepRecords <= 0 || keepRecords > maxRecords {
		keepRecords = maxRecords / 2
	}
	return &Aggregator{
		maxRecords:   maxRecords,
		keepRecords:  keepRecords,
		statusCounts: make(map[models.AnalysisStatus]int64),
		levelCounts:  make(map[models.EmergencyLevel]int64),
	}
}

// Record appends one observation and bumps the lifetime counters. When the
// record count exceeds the max bound, the slice is pruned in one batch to
// the most recent keep bound.
func (a *Aggregator) Record(rec models.MetricRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	a.records = append(a.records, rec)
	a.totalCount++
	a.statusCounts[rec.Status]++
	a.levelCounts[rec.EmergencyLevel]++
	if len(a.records) > a.maxRecords {
		pruned := len(a.records) - a.keepRecords
		a.records = append([]models.MetricRecord(nil), a.records[len(a.records)-a.keepRecords:]...)
		slog.Debug("Aggregator.Record: pruned records", "pruned", pruned, "kept", a.keepRecords)
	}
}

// Stats computes the aggregate view. TotalRequests and StatusDistribution
// come from lifetime counters; the remaining fields are computed over
// retained records within the trailing 24 hours.
func (a *Aggregator) Stats() models.AnalysisStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := models.AnalysisStats{
		TotalRequests:      a.totalCount,
		StatusDistribution: make(map[models.AnalysisStatus]int64, len(a.statusCounts)),
	}
	for status, count := range a.statusCounts {
		stats.StatusDistribution[status] = count
	}

	cutoff := time.Now().Add(-statsWindow)
	var windowCount, hits, emergencies int
	var totalMS int64
	for _, rec := range a.records {
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		windowCount++
		totalMS += rec.ProcessingTimeMS
		if rec.CacheHit {
			hits++
		}
		if rec.EmergencyLevel >= models.EmergencyHigh {
			emergencies++
		}
	}
	stats.Requests24h = windowCount
	stats.EmergencyCases24h = emergencies
	if windowCount > 0 {
		stats.AvgProcessingTimeMS = float64(totalMS) / float64(windowCount)
		stats.CacheHitRate = float64(hits) / float64(windowCount)
	}
	return stats
}
