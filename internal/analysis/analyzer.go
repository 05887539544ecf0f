package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/TriagePipe/internal/cache"
	"github.com/BTreeMap/TriagePipe/internal/genai"
	"github.com/BTreeMap/TriagePipe/internal/metrics"
	"github.com/BTreeMap/TriagePipe/internal/models"
	"github.com/BTreeMap/TriagePipe/internal/store"
	"github.com/BTreeMap/TriagePipe/internal/triage"
	"github.com/BTreeMap/TriagePipe/internal/util"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 30 * time.Second

// Analyzer runs the analysis pipeline. It owns the classifier, the result
// cache, and the metrics aggregator; the provider and the journal are
// optional collaborators. A nil provider serves demo analyses.
type Analyzer struct {
	provider   genai.Generator
	classifier *triage.Classifier
	cache      *cache.Cache
	metrics    *metrics.Aggregator
	journal    store.Journal
	timeout    time.Duration
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithProvider sets the AI provider. Without it the analyzer stays in demo
// mode.
func WithProvider(g genai.Generator) Option {
	return func(a *Analyzer) {
		a.provider = g
	}
}

// WithJournal sets the outcome journal. Journal writes are best-effort.
func WithJournal(j store.Journal) Option {
	return func(a *Analyzer) {
		a.journal = j
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithCache replaces the default result cache.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.cache = c
		}
	}
}

// WithMetrics replaces the default metrics aggregator.
func WithMetrics(m *metrics.Aggregator) Option {
	return func(a *Analyzer) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewAnalyzer creates an Analyzer with default cache, metrics, and classifier.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		classifier: triage.NewClassifier(),
		cache:      cache.New(),
		metrics:    metrics.New(),
		timeout:    DefaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs one symptom analysis to a terminal result. It never returns an
// error: invalid input, provider outages, quota exhaustion, and malformed
// provider replies all map to terminal statuses on the result itself. Exactly
// one metric record is emitted per call.
func (a *Analyzer) Analyze(ctx context.Context, raw string, pctx models.PatientContext) models.AnalysisResult {
	requestID := util.GenerateRequestID()
	start := time.Now()

	symptoms, err := models.NewSymptomText(raw)
	if err != nil {
		slog.Warn("Analyzer.Analyze: invalid input rejected", "requestID", requestID, "error", err)
		result := invalidResult(requestID, err, start)
		a.recordMetric(result, false)
		a.journalOutcome(result, "", false)
		return result
	}
	fingerprint := symptoms.Fingerprint()

	if cached, ok := a.cache.Get(fingerprint); ok {
		slog.Debug("Analyzer.Analyze: cache hit", "requestID", requestID, "fingerprint", fingerprint)
		result := refreshCached(cached, requestID, start)
		a.recordMetric(result, true)
		a.journalOutcome(result, fingerprint, true)
		return result
	}

	level := a.classifier.Classify(symptoms.String())
	if level > models.EmergencyNone {
		keywords := a.classifier.MatchedKeywords(symptoms.String())
		// Advisory only. The fingerprint stands in for the text, which is
		// never logged.
		slog.Warn("Analyzer.Analyze: emergency symptoms detected",
			"requestID", requestID,
			"fingerprint", fingerprint,
			"level", level.String(),
			"keywords", keywords)
		a.journalEmergency(fingerprint, level, keywords)
	}

	status, parsed := a.dispatch(ctx, symptoms, pctx, level)
	result := buildResult(requestID, status, parsed, level, start)
	if a.provider != nil {
		result.Metadata["provider"] = a.provider.Provider()
	} else {
		result.Metadata["demo_mode"] = true
	}
	result.CareAdvice = a.classifier.CareAdvice(symptoms.String(), level, pctx)

	if status == models.AnalysisStatusSuccess {
		a.cache.Put(fingerprint, result)
	}
	a.recordMetric(result, false)
	a.journalOutcome(result, fingerprint, false)
	return result
}

// dispatch selects the analysis path: demo payload without a provider, canned
// quota/error payloads on classified provider failures, normalized provider
// output on success.
func (a *Analyzer) dispatch(ctx context.Context, symptoms models.SymptomText, pctx models.PatientContext, level models.EmergencyLevel) (models.AnalysisStatus, ParsedAnalysis) {
	if a.provider == nil {
		slog.Debug("Analyzer.dispatch: no provider configured, serving demo analysis")
		return models.AnalysisStatusDemoMode, demoAnalysis(symptoms, level)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.provider.Generate(callCtx, systemPrompt, buildUserPrompt(symptoms, pctx))
	if err != nil {
		class := genai.ClassOf(err)
		slog.Error("Analyzer.dispatch: provider call failed",
			"provider", a.provider.Provider(),
			"class", string(class),
			"error", err)
		if class == genai.FailureQuota {
			return models.AnalysisStatusQuotaExceeded, quotaAnalysis(level)
		}
		return models.AnalysisStatusAPIError, errorAnalysis(level)
	}
	return models.AnalysisStatusSuccess, Normalize(raw)
}

// IsEmergency answers the boolean-only triage question using the shared
// classifier tables. It does not touch the provider, cache, or metrics.
func (a *Analyzer) IsEmergency(text string, pctx models.PatientContext) bool {
	return a.classifier.IsEmergency(text, pctx)
}

// Stats returns the aggregated analysis metrics.
func (a *Analyzer) Stats() models.AnalysisStats {
	return a.metrics.Stats()
}

// SystemStatus reports operational state for the status endpoint. The service
// is degraded, not down, when no provider is configured.
func (a *Analyzer) SystemStatus() models.SystemStatus {
	status := models.SystemStatus{
		ServiceStatus: "degraded",
		Cache: models.CacheStatus{
			Size:     a.cache.Len(),
			Capacity: a.cache.Cap(),
		},
		RulesLoaded: a.classifier.RulesLoaded(),
	}
	if a.provider != nil {
		status.ServiceStatus = "operational"
		status.Provider = a.provider.Provider()
	}
	return status
}

// buildResult converts a terminal payload into the outward result record,
// repairing missing condition sub-fields along the way.
func buildResult(requestID string, status models.AnalysisStatus, parsed ParsedAnalysis, level models.EmergencyLevel, start time.Time) models.AnalysisResult {
	urgency := parsed.UrgencyLevel
	if urgency == "" {
		urgency = "routine"
	}
	return models.AnalysisResult{
		RequestID:         requestID,
		Status:            status,
		EmergencyLevel:    level,
		EmergencyDetected: level != models.EmergencyNone,
		Conditions:        buildConditions(parsed.Conditions),
		Recommendations:   parsed.GeneralRecommendations,
		Disclaimers:       parsed.Disclaimers,
		ConfidenceScore:   parsed.ConfidenceScore,
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
		Timestamp:         time.Now().UTC(),
		Metadata: map[string]interface{}{
			"urgency_level": urgency,
			"cache_hit":     false,
		},
	}
}

// buildConditions applies the documented defaults for missing sub-fields.
func buildConditions(parsed []ParsedCondition) []models.Condition {
	conditions := make([]models.Condition, 0, len(parsed))
	for _, pc := range parsed {
		cond := models.Condition{
			Name:            pc.Name,
			Probability:     pc.Probability,
			Description:     pc.Description,
			Recommendations: pc.Recommendations,
			Severity:        pc.Severity,
			ICDCode:         pc.ICDCode,
		}
		if cond.Name == "" {
			cond.Name = "Unknown Condition"
		}
		if cond.Probability == "" {
			cond.Probability = "Unknown"
		}
		if cond.Recommendations == nil {
			cond.Recommendations = []string{}
		}
		if cond.Severity == "" {
			cond.Severity = "medium"
		}
		conditions = append(conditions, cond)
	}
	return conditions
}

// invalidResult is the terminal for rejected input. Validation failures never
// reach the classifier, so the emergency level stays at none.
func invalidResult(requestID string, valErr error, start time.Time) models.AnalysisResult {
	return models.AnalysisResult{
		RequestID:         requestID,
		Status:            models.AnalysisStatusInvalidInput,
		EmergencyLevel:    models.EmergencyNone,
		EmergencyDetected: false,
		Conditions:        []models.Condition{},
		Recommendations:   []string{"Professional medical consultation recommended"},
		Disclaimers:       []string{"Input could not be analyzed"},
		ConfidenceScore:   0.0,
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
		Timestamp:         time.Now().UTC(),
		Metadata: map[string]interface{}{
			"error_message": valErr.Error(),
		},
	}
}

// refreshCached returns a cached result under a new identity. The metadata map
// is copied so the cached entry never observes the cache_hit flag.
func refreshCached(cached models.AnalysisResult, requestID string, start time.Time) models.AnalysisResult {
	result := cached
	result.RequestID = requestID
	result.Timestamp = time.Now().UTC()
	result.ProcessingTimeMS = time.Since(start).Milliseconds()

	meta := make(map[string]interface{}, len(cached.Metadata)+1)
	for k, v := range cached.Metadata {
		meta[k] = v
	}
	meta["cache_hit"] = true
	result.Metadata = meta
	return result
}

func (a *Analyzer) recordMetric(result models.AnalysisResult, cacheHit bool) {
	a.metrics.Record(models.MetricRecord{
		Timestamp:        result.Timestamp,
		Status:           result.Status,
		EmergencyLevel:   result.EmergencyLevel,
		ProcessingTimeMS: result.ProcessingTimeMS,
		CacheHit:         cacheHit,
	})
}

func (a *Analyzer) journalOutcome(result models.AnalysisResult, fingerprint string, cacheHit bool) {
	if a.journal == nil {
		return
	}
	rec := models.OutcomeRecord{
		RequestID:        result.RequestID,
		Fingerprint:      fingerprint,
		Status:           result.Status,
		EmergencyLevel:   result.EmergencyLevel,
		ProcessingTimeMS: result.ProcessingTimeMS,
		CacheHit:         cacheHit,
		CreatedAt:        result.Timestamp,
	}
	if err := a.journal.AddOutcome(rec); err != nil {
		slog.Error("Analyzer.journalOutcome: failed to record outcome", "requestID", result.RequestID, "error", err)
	}
}

func (a *Analyzer) journalEmergency(fingerprint string, level models.EmergencyLevel, keywords []string) {
	if a.journal == nil {
		return
	}
	ev := models.EmergencyEvent{
		Fingerprint: fingerprint,
		Level:       level,
		Keywords:    keywords,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.journal.AddEmergencyEvent(ev); err != nil {
		slog.Error("Analyzer.journalEmergency: failed to record emergency event", "fingerprint", fingerprint, "error", err)
	}
}
