// Package api provides HTTP handlers for TriagePipe endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.analyzeHandler: processing analyze request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.analyzeHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.analyzeHandler: failed to decode JSON", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	result := s.analyzer.Analyze(r.Context(), req.Symptoms, req.PatientContext)
	if result.Status == models.AnalysisStatusInvalidInput {
		message := "Invalid input"
		if m, ok := result.Metadata["error_message"].(string); ok && m != "" {
			message = m
		}
		slog.Warn("Server.analyzeHandler: input rejected", "requestID", result.RequestID)
		writeJSONResponse(w, http.StatusBadRequest, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(message).
			WithResult(result).
			Build())
		return
	}

	slog.Info("Server.analyzeHandler: analysis completed",
		"requestID", result.RequestID,
		"status", string(result.Status),
		"emergency", result.EmergencyDetected)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// quickCheckHandler serves the minimal projection of a full analysis
// (POST /quick-check).
func (s *Server) quickCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.quickCheckHandler: processing quick check", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.quickCheckHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.quickCheckHandler: failed to decode JSON", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if len(strings.TrimSpace(req.Symptoms)) < models.MinSymptomTextLength {
		slog.Warn("Server.quickCheckHandler: symptoms too short")
		writeError(w, http.StatusBadRequest, "Please provide more detailed symptoms")
		return
	}

	result := s.analyzer.Analyze(r.Context(), req.Symptoms, req.PatientContext)

	qc := models.QuickCheckResult{
		EmergencyDetected: result.EmergencyDetected,
		TriageLevel:       "routine",
		TopCondition:      "Unknown",
		ConfidenceScore:   result.ConfidenceScore,
	}
	if urgency, ok := result.Metadata["urgency_level"].(string); ok && urgency != "" {
		qc.TriageLevel = urgency
	}
	if len(result.Conditions) > 0 {
		qc.TopCondition = result.Conditions[0].Name
	}
	if result.CareAdvice != nil {
		qc.SpecialistReferral = result.CareAdvice.SpecialistReferral
		qc.FollowUpTimeline = result.CareAdvice.FollowUpTimeline
	}

	slog.Debug("Server.quickCheckHandler: quick check completed",
		"requestID", result.RequestID,
		"emergency", qc.EmergencyDetected,
		"top_condition", qc.TopCondition)
	writeJSONResponse(w, http.StatusOK, models.Success(qc))
}

// emergencyCheckHandler answers the boolean triage question without running
// a full analysis (POST /emergency-check).
func (s *Server) emergencyCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.emergencyCheckHandler: processing emergency check", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.emergencyCheckHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.emergencyCheckHandler: failed to decode JSON", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	emergency := s.analyzer.IsEmergency(req.Symptoms, req.PatientContext)
	slog.Debug("Server.emergencyCheckHandler: check complete", "emergency", emergency)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"emergency": emergency}))
}

// metricsHandler returns aggregate analysis statistics (GET /metrics).
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.metricsHandler: processing metrics request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.metricsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats := s.analyzer.Stats()
	slog.Debug("Server.metricsHandler: stats computed", "total_requests", stats.TotalRequests)
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// statusHandler reports operational state (GET /status).
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.statusHandler: processing status request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.statusHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.analyzer.SystemStatus()))
}

// healthHandler provides a health check endpoint for monitoring and load
// balancing (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// Journal reachability is the health indicator.
	if s.journal != nil {
		if _, err := s.journal.GetOutcomes(1); err != nil {
			slog.Warn("Health check: journal unreachable", "error", err)
			healthData["status"] = "degraded"
			healthData["error"] = "Failed to reach analysis journal"
		}
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}

// journalHandler returns recent analysis outcomes (GET /journal).
func (s *Server) journalHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.journalHandler: processing journal request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.journalHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	outcomes, err := s.journal.GetOutcomes(parseLimit(r))
	if err != nil {
		slog.Error("Server.journalHandler: failed to fetch outcomes", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch outcomes")
		return
	}
	slog.Debug("Server.journalHandler: outcomes fetched", "count", len(outcomes))
	writeJSONResponse(w, http.StatusOK, models.Success(outcomes))
}

// journalEmergenciesHandler returns recent emergency events
// (GET /journal/emergencies).
func (s *Server) journalEmergenciesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.journalEmergenciesHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.journalEmergenciesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	events, err := s.journal.GetEmergencyEvents(parseLimit(r))
	if err != nil {
		slog.Error("Server.journalEmergenciesHandler: failed to fetch events", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch emergency events")
		return
	}
	slog.Debug("Server.journalEmergenciesHandler: events fetched", "count", len(events))
	writeJSONResponse(w, http.StatusOK, models.Success(events))
}

// emergencyGuide is the static when-to-seek-help content. It is served
// without consulting the analyzer.
var emergencyGuide = map[string][]string{
	"immediate_911": {
		"Chest pain or pressure",
		"Difficulty breathing or shortness of breath",
		"Sudden severe headache",
		"Loss of consciousness or fainting",
		"Severe bleeding that won't stop",
		"Signs of stroke (face drooping, arm weakness, speech difficulty)",
		"Severe allergic reaction (anaphylaxis)",
		"Seizures",
		"Severe burns",
		"Suspected poisoning or overdose",
	},
	"urgent_care": {
		"High fever (over 103°F/39.4°C)",
		"Persistent vomiting or diarrhea",
		"Severe pain (8-10/10)",
		"Signs of infection with fever",
		"Difficulty swallowing",
		"Severe headache with neck stiffness",
		"Abdominal pain with vomiting",
		"Cuts that may need stitches",
	},
	"primary_care": {
		"Persistent cough or cold symptoms",
		"Mild to moderate pain",
		"Skin rashes or irritations",
		"Minor injuries",
		"Routine health concerns",
		"Follow-up for chronic conditions",
		"Preventive care and check-ups",
	},
}

// emergencyGuideHandler serves the static care guide (GET /emergency-guide).
func (s *Server) emergencyGuideHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(emergencyGuide))
}

// parseLimit reads the optional limit query parameter. Zero means the journal
// default; bad values are treated as unset.
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		slog.Warn("Server.parseLimit: invalid limit parameter", "limit", raw)
		return 0
	}
	return limit
}
