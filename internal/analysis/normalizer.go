package analysis

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ParsedAnalysis is the payload shape the provider is instructed to return.
// Missing condition sub-fields are repaired later by buildConditions.
type ParsedAnalysis struct {
	Conditions             []ParsedCondition `json:"conditions"`
	GeneralRecommendations []string          `json:"general_recommendations"`
	Disclaimers            []string          `json:"disclaimers"`
	ConfidenceScore        float64           `json:"confidence_score"`
	UrgencyLevel           string            `json:"urgency_level"`
	// TriageLevel is an alternate key some replies use for the urgency label.
	TriageLevel string `json:"triage_level"`
}

// ParsedCondition mirrors one entry of the provider's conditions array.
type ParsedCondition struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Probability     string   `json:"probability"`
	Recommendations []string `json:"recommendations"`
	Severity        string   `json:"severity"`
	ICDCode         string   `json:"icd_code"`
}

// requiredPayloadKeys must all be present at the top level of the provider's
// JSON for the payload to be accepted.
var requiredPayloadKeys = []string{"conditions", "general_recommendations", "disclaimers"}

// Normalize repairs provider free text into a ParsedAnalysis. It strips
// Markdown code fences, extracts the outermost JSON object, and verifies the
// required top-level keys. It never fails: any malformed input yields the
// canned parse-fallback payload instead.
func Normalize(raw string) ParsedAnalysis {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		slog.Warn("Normalize: no JSON object found in provider response", "length", len(raw))
		return fallbackAnalysis()
	}
	text = text[start : end+1]

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		slog.Warn("Normalize: provider response is not valid JSON", "error", err)
		return fallbackAnalysis()
	}
	for _, key := range requiredPayloadKeys {
		if _, ok := keys[key]; !ok {
			slog.Warn("Normalize: provider response missing required key", "key", key)
			return fallbackAnalysis()
		}
	}

	var parsed ParsedAnalysis
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		slog.Warn("Normalize: provider response shape mismatch", "error", err)
		return fallbackAnalysis()
	}
	if parsed.UrgencyLevel == "" {
		parsed.UrgencyLevel = parsed.TriageLevel
	}
	return parsed
}
