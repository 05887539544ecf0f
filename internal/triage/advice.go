package triage

import (
	"strings"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// CareAdvice assembles the full advice block for classified symptom text.
func (c *Classifier) CareAdvice(text string, level models.EmergencyLevel, pctx models.PatientContext) *models.CareAdvice {
	return &models.CareAdvice{
		SpecialistReferral: c.SuggestSpecialist(text, level),
		FollowUpTimeline:   FollowUpTimeline(level),
		RiskFactors:        c.RiskFactors(text, pctx),
		RedFlags:           c.RedFlags(text),
	}
}

// SuggestSpecialist returns the referral specialty for the symptom text.
// High and critical levels always route to emergency medicine; otherwise the
// specialty with the most keyword matches wins, falling back to general
// practice.
func (c *Classifier) SuggestSpecialist(text string, level models.EmergencyLevel) string {
	if level >= models.EmergencyHigh {
		return "Emergency Medicine"
	}
	lower := strings.ToLower(text)
	best := "General Practice"
	bestScore := 0
	for _, sp := range specialtyKeywords {
		score := 0
		for _, kw := range sp.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = sp.name
		}
	}
	return best
}

// FollowUpTimeline returns the recommended time frame for seeking care.
func FollowUpTimeline(level models.EmergencyLevel) string {
	switch {
	case level >= models.EmergencyCritical:
		return "Immediate - Call 911"
	case level >= models.EmergencyHigh:
		return "Within 24-48 hours"
	case level >= models.EmergencyMedium:
		return "Within 1 week"
	default:
		return "Within 2-4 weeks"
	}
}

// RiskFactors derives patient-specific risk notes from the supplied context
// and symptom text. No context means no risk factors.
func (c *Classifier) RiskFactors(text string, pctx models.PatientContext) []string {
	if pctx.IsZero() {
		return nil
	}
	lower := strings.ToLower(text)
	var factors []string

	switch pctx.AgeRange {
	case "70+":
		factors = append(factors, "Advanced age increases risk of complications")
	case "0-17":
		factors = append(factors, "Pediatric symptoms can progress quickly and need careful evaluation")
	}
	if pctx.PainLevel == "9-10" {
		factors = append(factors, "Severe self-reported pain level")
	}
	if pctx.HasFever {
		duration := strings.ToLower(pctx.Duration)
		if strings.Contains(duration, "week") || strings.Contains(duration, "month") {
			factors = append(factors, "Prolonged fever warrants medical evaluation")
		}
	}
	if pctx.HasAllergies && pctx.TakingMedications {
		factors = append(factors, "Known allergies combined with current medications require review")
	}
	if pctx.TakingMedications {
		seen := make(map[string]bool)
		for _, di := range drugInteractionWarnings {
			if strings.Contains(lower, di.trigger) && !seen[di.warning] {
				seen[di.warning] = true
				factors = append(factors, di.warning)
			}
		}
	}
	return factors
}

// RedFlags returns the matched high and critical phrases as patient-facing
// warnings.
func (c *Classifier) RedFlags(text string) []string {
	lower := strings.ToLower(text)
	var flags []string
	for _, kw := range c.keywords {
		if kw.level >= models.EmergencyHigh && strings.Contains(lower, kw.phrase) {
			flags = append(flags, kw.phrase)
		}
	}
	return flags
}
