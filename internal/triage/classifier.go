package triage

import (
	"strings"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// Classifier evaluates symptom text against the shared emergency rule table.
// It is stateless after construction and safe for concurrent use.
type Classifier struct {
	keywords []keywordRule
	patterns []patternRule
}

// NewClassifier creates a Classifier backed by the built-in rule table.
func NewClassifier() *Classifier {
	return &Classifier{keywords: emergencyKeywords, patterns: emergencyPatterns}
}

// RulesLoaded reports whether the rule table is populated.
func (c *Classifier) RulesLoaded() bool {
	return len(c.keywords) > 0 && len(c.patterns) > 0
}

// Classify returns the highest emergency level among all matching rules.
// Text with no matches classifies as EmergencyNone. Patient context never
// affects this variant; context contributions apply only to IsEmergency.
func (c *Classifier) Classify(text string) models.EmergencyLevel {
	lower := strings.ToLower(text)
	level := models.EmergencyNone
	for _, kw := range c.keywords {
		if kw.level > level && strings.Contains(lower, kw.phrase) {
			level = kw.level
		}
	}
	for _, p := range c.patterns {
		if p.level > level && p.re.MatchString(lower) {
			level = p.level
		}
	}
	return level
}

// IsEmergency reports whether the weighted score of all matching rules plus
// patient context contributions reaches the emergency threshold. Overlapping
// rules each count once.
func (c *Classifier) IsEmergency(text string, pctx models.PatientContext) bool {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw.phrase) {
			score += kw.weight
		}
	}
	for _, p := range c.patterns {
		if p.re.MatchString(lower) {
			score += patternWeight
		}
	}
	if pctx.PainLevel == "9-10" {
		score += severePainBonus
	}
	if pctx.EmergencySymptoms {
		score += reportedEmergencyBonus
	}
	// Age risk only amplifies an already positive score; it never creates
	// an emergency on its own.
	if (pctx.AgeRange == "0-17" || pctx.AgeRange == "70+") && score > 0 {
		score += ageRiskBonus
	}
	return score >= emergencyScoreThreshold
}

// MatchedKeywords returns the table phrases found in the text, in table
// order. Only table constants are returned, so the result is always safe to
// log.
func (c *Classifier) MatchedKeywords(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw.phrase) {
			matched = append(matched, kw.phrase)
		}
	}
	return matched
}
