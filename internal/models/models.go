// Package models defines the core data structures for TriagePipe.
//
// It includes emergency levels, analysis statuses, validated symptom input,
// and the result shapes shared across modules.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// EmergencyLevel represents the triage severity assigned to a symptom
// description. Levels are ordered; comparisons must use the integer value,
// never the display name.
type EmergencyLevel int

const (
	// EmergencyNone indicates no emergency indicators were found.
	EmergencyNone EmergencyLevel = iota
	// EmergencyLow indicates symptoms that warrant routine follow-up.
	EmergencyLow
	// EmergencyMedium indicates symptoms that need prompt attention.
	EmergencyMedium
	// EmergencyHigh indicates symptoms that need urgent care.
	EmergencyHigh
	// EmergencyCritical indicates symptoms that need immediate emergency care.
	EmergencyCritical
)

var emergencyLevelNames = map[EmergencyLevel]string{
	EmergencyNone:     "none",
	EmergencyLow:      "low",
	EmergencyMedium:   "medium",
	EmergencyHigh:     "high",
	EmergencyCritical: "critical",
}

// String returns the lowercase display name of the level.
func (l EmergencyLevel) String() string {
	if name, ok := emergencyLevelNames[l]; ok {
		return name
	}
	return "none"
}

// MarshalJSON encodes the level as its display name.
func (l EmergencyLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level from its display name.
func (l *EmergencyLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	level, err := ParseEmergencyLevel(name)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ParseEmergencyLevel converts a display name into an EmergencyLevel.
func ParseEmergencyLevel(name string) (EmergencyLevel, error) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	for level, levelName := range emergencyLevelNames {
		if levelName == cleaned {
			return level, nil
		}
	}
	return EmergencyNone, fmt.Errorf("unknown emergency level: %q", name)
}

// IsValidEmergencyLevel checks if the given level is within the defined range.
func IsValidEmergencyLevel(l EmergencyLevel) bool {
	return l >= EmergencyNone && l <= EmergencyCritical
}

// AnalysisStatus identifies the terminal state of an analysis attempt.
// Every call to the analyzer ends in exactly one of these.
type AnalysisStatus string

const (
	// AnalysisStatusSuccess indicates a normalized provider response was returned.
	AnalysisStatusSuccess AnalysisStatus = "success"
	// AnalysisStatusDemoMode indicates no provider was configured and a demo payload was returned.
	AnalysisStatusDemoMode AnalysisStatus = "demo_mode"
	// AnalysisStatusQuotaExceeded indicates the provider rejected the call for quota or billing reasons.
	AnalysisStatusQuotaExceeded AnalysisStatus = "quota_exceeded"
	// AnalysisStatusAPIError indicates the provider call failed for any other reason.
	AnalysisStatusAPIError AnalysisStatus = "api_error"
	// AnalysisStatusInvalidInput indicates the symptom text failed validation.
	AnalysisStatusInvalidInput AnalysisStatus = "invalid_input"
)

// IsValidAnalysisStatus checks if the given status is supported.
func IsValidAnalysisStatus(s AnalysisStatus) bool {
	switch s {
	case AnalysisStatusSuccess, AnalysisStatusDemoMode, AnalysisStatusQuotaExceeded,
		AnalysisStatusAPIError, AnalysisStatusInvalidInput:
		return true
	default:
		return false
	}
}

// Validation constants for symptom input
const (
	// MinSymptomTextLength defines the minimum length of a symptom description
	// after whitespace normalization.
	MinSymptomTextLength = 10
	// MaxSymptomTextLength defines the maximum length of a symptom description
	// after whitespace normalization.
	MaxSymptomTextLength = 2000
	// FingerprintHexLength defines how many hex characters of the SHA-256
	// digest form a symptom fingerprint.
	FingerprintHexLength = 16
)

// Error variables for better error handling and testability
var (
	ErrSymptomsTooShort   = errors.New("please provide at least 10 characters describing your symptoms")
	ErrSymptomsTooLong    = errors.New("please limit your description to 2000 characters")
	ErrSymptomsSuspicious = errors.New("invalid input detected, please describe your symptoms in plain text")
)

// suspiciousPatterns match injection attempts in symptom text. Matching is
// done against the lowercased, whitespace-normalized input.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<script`),
	regexp.MustCompile(`javascript:`),
	regexp.MustCompile(`on\w+\s*=`),
	regexp.MustCompile(`<iframe`),
	regexp.MustCompile(`<object`),
	regexp.MustCompile(`<embed`),
	regexp.MustCompile(`sql\s*injection`),
	regexp.MustCompile(`union\s+select`),
	regexp.MustCompile(`drop\s+table`),
}

// SymptomText is a validated, whitespace-normalized symptom description.
// The zero value is invalid; construct via NewSymptomText.
type SymptomText struct {
	text string
}

// NewSymptomText normalizes and validates raw symptom input. Normalization
// collapses internal whitespace runs to single spaces and trims the ends;
// length bounds apply to the normalized text.
func NewSymptomText(raw string) (SymptomText, error) {
	normalized := strings.Join(strings.Fields(raw), " ")
	if len(normalized) < MinSymptomTextLength {
		return SymptomText{}, ErrSymptomsTooShort
	}
	if len(normalized) > MaxSymptomTextLength {
		return SymptomText{}, ErrSymptomsTooLong
	}
	lower := strings.ToLower(normalized)
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(lower) {
			return SymptomText{}, ErrSymptomsSuspicious
		}
	}
	return SymptomText{text: normalized}, nil
}

// String returns the normalized text. Case is preserved from the input.
func (s SymptomText) String() string {
	return s.text
}

// Fingerprint returns the cache and journal key for this text: the first 16
// hex characters of the SHA-256 digest of the lowercased normalized text.
// Log the fingerprint, never the text itself.
func (s SymptomText) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.ToLower(s.text)))
	return hex.EncodeToString(sum[:])[:FingerprintHexLength]
}

// PatientContext carries optional structured context supplied alongside the
// symptom text. All fields are optional; the zero value means no context.
type PatientContext struct {
	AgeRange          string `json:"age_range,omitempty"` // e.g., "0-17", "18-30", "31-50", "51-70", "70+"
	Gender            string `json:"gender,omitempty"`
	PainLevel         string `json:"pain_level,omitempty"` // e.g., "1-3", "4-6", "7-8", "9-10"
	Duration          string `json:"duration,omitempty"`
	HasFever          bool   `json:"has_fever,omitempty"`
	HasAllergies      bool   `json:"has_allergies,omitempty"`
	TakingMedications bool   `json:"taking_medications,omitempty"`
	EmergencySymptoms bool   `json:"emergency_symptoms,omitempty"` // self-reported emergency warning signs
}

// IsZero reports whether no context was supplied.
func (c PatientContext) IsZero() bool {
	return c == PatientContext{}
}

// Condition represents a single possible condition in an analysis result.
type Condition struct {
	Name            string   `json:"name"`
	Probability     string   `json:"probability"` // "High", "Medium", "Low", "Certain", "N/A", or "Unknown"
	Description     string   `json:"description,omitempty"`
	Recommendations []string `json:"recommendations"`
	Severity        string   `json:"severity"`
	ICDCode         string   `json:"icd_code,omitempty"`
}

// CareAdvice carries triage guidance derived from the classifier and patient
// context, independent of the provider response.
type CareAdvice struct {
	SpecialistReferral string   `json:"specialist_referral,omitempty"`
	FollowUpTimeline   string   `json:"follow_up_timeline,omitempty"`
	RiskFactors        []string `json:"risk_factors,omitempty"`
	RedFlags           []string `json:"red_flags,omitempty"`
}

// AnalysisResult is the outcome of one analysis attempt. The pipeline always
// produces one, whatever the terminal status; provider failures never surface
// as errors to the caller.
type AnalysisResult struct {
	RequestID         string                 `json:"request_id"`
	Status            AnalysisStatus         `json:"status"`
	EmergencyLevel    EmergencyLevel         `json:"emergency_level"`
	EmergencyDetected bool                   `json:"emergency_detected"`
	Conditions        []Condition            `json:"conditions"`
	Recommendations   []string               `json:"general_recommendations"`
	Disclaimers       []string               `json:"disclaimers"`
	ConfidenceScore   float64                `json:"confidence_score"`
	CareAdvice        *CareAdvice            `json:"care_advice,omitempty"`
	ProcessingTimeMS  int64                  `json:"processing_time_ms"`
	Timestamp         time.Time              `json:"timestamp"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// MetricRecord is one per-request observation consumed by the metrics
// aggregator. Every terminal state emits exactly one.
type MetricRecord struct {
	Timestamp        time.Time      `json:"timestamp"`
	Status           AnalysisStatus `json:"status"`
	EmergencyLevel   EmergencyLevel `json:"emergency_level"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	CacheHit         bool           `json:"cache_hit"`
}

// AnalysisStats is the aggregate view served by the metrics endpoint.
// TotalRequests and StatusDistribution are lifetime counters; the remaining
// fields are computed over the trailing 24 hours.
type AnalysisStats struct {
	TotalRequests       int64                    `json:"total_requests"`
	Requests24h         int                      `json:"requests_24h"`
	AvgProcessingTimeMS float64                  `json:"avg_processing_time_ms"`
	CacheHitRate        float64                  `json:"cache_hit_rate"`
	StatusDistribution  map[AnalysisStatus]int64 `json:"status_distribution"`
	EmergencyCases24h   int                      `json:"emergency_cases_24h"`
}

// OutcomeRecord is the journal row written for each analysis attempt. It
// carries the symptom fingerprint only; raw text is never persisted.
type OutcomeRecord struct {
	RequestID        string         `json:"request_id"`
	Fingerprint      string         `json:"fingerprint"`
	Status           AnalysisStatus `json:"status"`
	EmergencyLevel   EmergencyLevel `json:"emergency_level"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	CacheHit         bool           `json:"cache_hit"`
	CreatedAt        time.Time      `json:"created_at"`
}

// EmergencyEvent is the journal row written when the classifier detects a
// non-none emergency level.
type EmergencyEvent struct {
	Fingerprint string         `json:"fingerprint"`
	Level       EmergencyLevel `json:"level"`
	Keywords    []string       `json:"keywords"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AnalyzeRequest is the payload accepted by the analyze, quick-check, and
// emergency-check endpoints.
type AnalyzeRequest struct {
	Symptoms       string         `json:"symptoms"`
	PatientContext PatientContext `json:"patient_context,omitempty"`
}

// QuickCheckResult is the minimal projection of an AnalysisResult served by
// the quick-check endpoint.
type QuickCheckResult struct {
	EmergencyDetected  bool    `json:"emergency_detected"`
	TriageLevel        string  `json:"triage_level"`
	TopCondition       string  `json:"top_condition"`
	SpecialistReferral string  `json:"specialist_referral,omitempty"`
	FollowUpTimeline   string  `json:"follow_up_timeline,omitempty"`
	ConfidenceScore    float64 `json:"confidence_score"`
}

// CacheStatus reports bounded cache occupancy for the status endpoint.
type CacheStatus struct {
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
}

// SystemStatus is the health summary served by the status endpoint.
type SystemStatus struct {
	ServiceStatus string      `json:"service_status"` // "operational" or "degraded"
	Provider      string      `json:"provider,omitempty"`
	Cache         CacheStatus `json:"cache"`
	RulesLoaded   bool        `json:"emergency_rules_loaded"`
}

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
