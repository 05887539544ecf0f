package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/TriagePipe/internal/analysis"
	"github.com/BTreeMap/TriagePipe/internal/models"
	"github.com/BTreeMap/TriagePipe/internal/store"
)

// stubGenerator returns a fixed completion for provider-backed handler tests.
type stubGenerator struct {
	response string
	err      error
}

func (g *stubGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *stubGenerator) Provider() string {
	return "stub"
}

// newTestServer builds a demo-mode server over an in-memory journal.
func newTestServer(opts ...analysis.Option) (*Server, *store.InMemoryJournal) {
	journal := store.NewInMemoryJournal()
	opts = append([]analysis.Option{analysis.WithJournal(journal)}, opts...)
	analyzer := analysis.NewAnalyzer(opts...)
	return NewServer(DefaultAddr, analyzer, journal), journal
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func getPath(handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body: %s)", err, rec.Body.String())
	}
	return response
}

// decodeResult re-marshals the envelope result into the given target shape.
func decodeResult(t *testing.T, response models.APIResponse, target interface{}) {
	t.Helper()
	raw, err := json.Marshal(response.Result)
	if err != nil {
		t.Fatalf("failed to re-marshal result: %v", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
}

func TestAnalyzeHandlerDemoMode(t *testing.T) {
	server, _ := newTestServer()

	rec := postJSON(t, server.analyzeHandler, "/analyze",
		models.AnalyzeRequest{Symptoms: "I have a mild headache today"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	response := decodeEnvelope(t, rec)
	if response.Status != string(models.APIStatusOK) {
		t.Errorf("expected status ok, got %s", response.Status)
	}

	var result models.AnalysisResult
	decodeResult(t, response, &result)
	if result.Status != models.AnalysisStatusDemoMode {
		t.Errorf("expected demo_mode, got %s", result.Status)
	}
	if len(result.Conditions) == 0 || result.Conditions[0].Name != "Tension-Type Headache" {
		t.Errorf("unexpected conditions: %+v", result.Conditions)
	}
	if result.RequestID == "" {
		t.Error("expected a request ID")
	}
}

func TestAnalyzeHandlerInvalidInput(t *testing.T) {
	server, _ := newTestServer()

	rec := postJSON(t, server.analyzeHandler, "/analyze", models.AnalyzeRequest{Symptoms: "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	response := decodeEnvelope(t, rec)
	if response.Status != string(models.APIStatusError) {
		t.Errorf("expected status error, got %s", response.Status)
	}
	if response.Message == "" {
		t.Error("expected a validation message in the envelope")
	}

	// The terminal result still rides along for clients that want details.
	var result models.AnalysisResult
	decodeResult(t, response, &result)
	if result.Status != models.AnalysisStatusInvalidInput {
		t.Errorf("expected invalid_input in result, got %s", result.Status)
	}
}

func TestAnalyzeHandlerBadJSON(t *testing.T) {
	server, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.analyzeHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	response := decodeEnvelope(t, rec)
	if response.Message != "Invalid JSON format" {
		t.Errorf("unexpected message: %q", response.Message)
	}
}

func TestAnalyzeHandlerMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer()

	rec := getPath(server.analyzeHandler, "/analyze")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestAnalyzeHandlerProviderBacked(t *testing.T) {
	payload := `{"conditions": [{"name": "Migraine", "probability": "High", "recommendations": ["Rest in a dark room"], "severity": "moderate"}], "general_recommendations": ["Stay hydrated"], "disclaimers": ["Not a diagnosis"], "confidence_score": 0.9, "urgency_level": "routine"}`
	server, _ := newTestServer(analysis.WithProvider(&stubGenerator{response: payload}))

	rec := postJSON(t, server.analyzeHandler, "/analyze",
		models.AnalyzeRequest{Symptoms: "throbbing pain behind my left eye"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var result models.AnalysisResult
	decodeResult(t, decodeEnvelope(t, rec), &result)
	if result.Status != models.AnalysisStatusSuccess {
		t.Errorf("expected success, got %s", result.Status)
	}
	if len(result.Conditions) != 1 || result.Conditions[0].Name != "Migraine" {
		t.Errorf("unexpected conditions: %+v", result.Conditions)
	}
	if result.ConfidenceScore != 0.9 {
		t.Errorf("unexpected confidence: %v", result.ConfidenceScore)
	}
}

func TestQuickCheckHandler(t *testing.T) {
	server, _ := newTestServer()

	rec := postJSON(t, server.quickCheckHandler, "/quick-check",
		models.AnalyzeRequest{Symptoms: "I have a mild headache today"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var qc models.QuickCheckResult
	decodeResult(t, decodeEnvelope(t, rec), &qc)
	if qc.EmergencyDetected {
		t.Error("mild headache must not flag an emergency")
	}
	if qc.TriageLevel != "routine" {
		t.Errorf("expected routine, got %q", qc.TriageLevel)
	}
	if qc.TopCondition != "Tension-Type Headache" {
		t.Errorf("unexpected top condition: %q", qc.TopCondition)
	}
	if qc.ConfidenceScore != 0.75 {
		t.Errorf("unexpected confidence: %v", qc.ConfidenceScore)
	}
	if qc.SpecialistReferral == "" || qc.FollowUpTimeline == "" {
		t.Errorf("expected care advice fields, got %+v", qc)
	}
}

func TestQuickCheckHandlerTooShort(t *testing.T) {
	server, _ := newTestServer()

	rec := postJSON(t, server.quickCheckHandler, "/quick-check", models.AnalyzeRequest{Symptoms: "cough"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	response := decodeEnvelope(t, rec)
	if response.Message != "Please provide more detailed symptoms" {
		t.Errorf("unexpected message: %q", response.Message)
	}
}

func TestEmergencyCheckHandler(t *testing.T) {
	server, _ := newTestServer()

	tests := []struct {
		name      string
		symptoms  string
		emergency bool
	}{
		{"critical symptoms", "severe chest pain and difficulty breathing", true},
		{"benign symptoms", "itchy elbow for a few days", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, server.emergencyCheckHandler, "/emergency-check",
				models.AnalyzeRequest{Symptoms: tt.symptoms})
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var result map[string]bool
			decodeResult(t, decodeEnvelope(t, rec), &result)
			if result["emergency"] != tt.emergency {
				t.Errorf("expected emergency=%v, got %v", tt.emergency, result["emergency"])
			}
		})
	}
}

func TestEmergencyCheckHandlerUsesContext(t *testing.T) {
	server, _ := newTestServer()

	rec := postJSON(t, server.emergencyCheckHandler, "/emergency-check", models.AnalyzeRequest{
		Symptoms:       "persistent dull ache in my side",
		PatientContext: models.PatientContext{PainLevel: "9-10"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result map[string]bool
	decodeResult(t, decodeEnvelope(t, rec), &result)
	if !result["emergency"] {
		t.Error("self-reported severe pain must reach the emergency threshold")
	}
}

func TestMetricsHandler(t *testing.T) {
	server, _ := newTestServer()

	// Two analyses, then read the aggregate.
	postJSON(t, server.analyzeHandler, "/analyze", models.AnalyzeRequest{Symptoms: "I have a mild headache today"})
	postJSON(t, server.analyzeHandler, "/analyze", models.AnalyzeRequest{Symptoms: "hi"})

	rec := getPath(server.metricsHandler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats models.AnalysisStats
	decodeResult(t, decodeEnvelope(t, rec), &stats)
	if stats.TotalRequests != 2 {
		t.Errorf("expected 2 total requests, got %d", stats.TotalRequests)
	}
	if stats.StatusDistribution[models.AnalysisStatusDemoMode] != 1 {
		t.Errorf("unexpected distribution: %+v", stats.StatusDistribution)
	}
}

func TestStatusHandler(t *testing.T) {
	server, _ := newTestServer()

	rec := getPath(server.statusHandler, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status models.SystemStatus
	decodeResult(t, decodeEnvelope(t, rec), &status)
	if status.ServiceStatus != "degraded" {
		t.Errorf("expected degraded without provider, got %s", status.ServiceStatus)
	}
	if !status.RulesLoaded {
		t.Error("expected emergency rules loaded")
	}

	server, _ = newTestServer(analysis.WithProvider(&stubGenerator{response: "{}"}))
	rec = getPath(server.statusHandler, "/status")
	decodeResult(t, decodeEnvelope(t, rec), &status)
	if status.ServiceStatus != "operational" {
		t.Errorf("expected operational with provider, got %s", status.ServiceStatus)
	}
	if status.Provider != "stub" {
		t.Errorf("unexpected provider: %q", status.Provider)
	}
}

func TestHealthHandler(t *testing.T) {
	server, _ := newTestServer()

	rec := getPath(server.healthHandler, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", health["status"])
	}
	if _, ok := health["timestamp"]; !ok {
		t.Error("expected a timestamp")
	}
}

func TestJournalHandlers(t *testing.T) {
	server, journal := newTestServer()

	postJSON(t, server.analyzeHandler, "/analyze",
		models.AnalyzeRequest{Symptoms: "severe chest pain since this morning"})

	rec := getPath(server.journalHandler, "/journal")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var outcomes []models.OutcomeRecord
	decodeResult(t, decodeEnvelope(t, rec), &outcomes)
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Status != models.AnalysisStatusDemoMode {
		t.Errorf("unexpected status: %s", outcomes[0].Status)
	}

	rec = getPath(server.journalEmergenciesHandler, "/journal/emergencies")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var events []models.EmergencyEvent
	decodeResult(t, decodeEnvelope(t, rec), &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 emergency event, got %d", len(events))
	}
	if events[0].Level != models.EmergencyCritical {
		t.Errorf("unexpected level: %s", events[0].Level)
	}

	// Direct journal state matches what the endpoints reported.
	stored, err := journal.GetOutcomes(10)
	if err != nil {
		t.Fatalf("GetOutcomes failed: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("expected 1 stored outcome, got %d", len(stored))
	}
}

func TestJournalHandlerLimit(t *testing.T) {
	server, _ := newTestServer()

	postJSON(t, server.analyzeHandler, "/analyze", models.AnalyzeRequest{Symptoms: "mild headache since yesterday"})
	postJSON(t, server.analyzeHandler, "/analyze", models.AnalyzeRequest{Symptoms: "persistent cough and sore throat"})

	rec := getPath(server.journalHandler, "/journal?limit=1")
	var outcomes []models.OutcomeRecord
	decodeResult(t, decodeEnvelope(t, rec), &outcomes)
	if len(outcomes) != 1 {
		t.Errorf("expected limit to cap results at 1, got %d", len(outcomes))
	}

	// A malformed limit falls back to the default instead of failing.
	rec = getPath(server.journalHandler, "/journal?limit=banana")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for bad limit, got %d", rec.Code)
	}
	decodeResult(t, decodeEnvelope(t, rec), &outcomes)
	if len(outcomes) != 2 {
		t.Errorf("expected 2 outcomes with default limit, got %d", len(outcomes))
	}
}

func TestEmergencyGuideHandler(t *testing.T) {
	server, _ := newTestServer()

	rec := getPath(server.emergencyGuideHandler, "/emergency-guide")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var guide map[string][]string
	decodeResult(t, decodeEnvelope(t, rec), &guide)
	if len(guide["immediate_911"]) != 10 {
		t.Errorf("expected 10 call-911 entries, got %d", len(guide["immediate_911"]))
	}
	if len(guide["urgent_care"]) != 8 {
		t.Errorf("expected 8 urgent care entries, got %d", len(guide["urgent_care"]))
	}
	if len(guide["primary_care"]) != 7 {
		t.Errorf("expected 7 primary care entries, got %d", len(guide["primary_care"]))
	}
}
