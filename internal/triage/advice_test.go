package triage

import (
	"strings"
	"testing"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

func TestSuggestSpecialist(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		name  string
		text  string
		level models.EmergencyLevel
		want  string
	}{
		{"critical routes to emergency", "chest pain and sweating", models.EmergencyCritical, "Emergency Medicine"},
		{"high routes to emergency", "vomiting blood since lunch", models.EmergencyHigh, "Emergency Medicine"},
		{"neurology match", "frequent migraine with dizziness and numbness", models.EmergencyNone, "Neurology"},
		{"gastroenterology match", "stomach cramps with nausea and diarrhea", models.EmergencyNone, "Gastroenterology"},
		{"dermatology match", "red rash spreading across my skin", models.EmergencyLow, "Dermatology"},
		{"pulmonology match", "persistent cough and wheezing at night", models.EmergencyLow, "Pulmonology"},
		{"no match falls back", "feeling generally unwell lately", models.EmergencyNone, "General Practice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.SuggestSpecialist(tt.text, tt.level); got != tt.want {
				t.Errorf("SuggestSpecialist(%q, %v) = %q, want %q", tt.text, tt.level, got, tt.want)
			}
		})
	}
}

func TestFollowUpTimeline(t *testing.T) {
	tests := []struct {
		level models.EmergencyLevel
		want  string
	}{
		{models.EmergencyCritical, "Immediate - Call 911"},
		{models.EmergencyHigh, "Within 24-48 hours"},
		{models.EmergencyMedium, "Within 1 week"},
		{models.EmergencyLow, "Within 2-4 weeks"},
		{models.EmergencyNone, "Within 2-4 weeks"},
	}
	for _, tt := range tests {
		if got := FollowUpTimeline(tt.level); got != tt.want {
			t.Errorf("FollowUpTimeline(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestRiskFactors(t *testing.T) {
	c := NewClassifier()

	if got := c.RiskFactors("any symptoms at all", models.PatientContext{}); got != nil {
		t.Errorf("expected no risk factors without context, got %v", got)
	}

	factors := c.RiskFactors("ongoing pain in joints", models.PatientContext{AgeRange: "70+"})
	if !containsSubstring(factors, "Advanced age") {
		t.Errorf("expected advanced age factor, got %v", factors)
	}

	factors = c.RiskFactors("feverish and tired", models.PatientContext{HasFever: true, Duration: "two weeks"})
	if !containsSubstring(factors, "Prolonged fever") {
		t.Errorf("expected prolonged fever factor, got %v", factors)
	}

	factors = c.RiskFactors("feverish and tired", models.PatientContext{HasFever: true, Duration: "3 days"})
	if containsSubstring(factors, "Prolonged fever") {
		t.Errorf("short duration should not flag prolonged fever, got %v", factors)
	}

	factors = c.RiskFactors("headache while taking aspirin daily", models.PatientContext{TakingMedications: true})
	if !containsSubstring(factors, "bleeding risk") {
		t.Errorf("expected aspirin interaction factor, got %v", factors)
	}

	// warfarin and blood thinner share one warning; it must appear once
	factors = c.RiskFactors("bruising while on warfarin blood thinner", models.PatientContext{TakingMedications: true})
	count := 0
	for _, f := range factors {
		if strings.Contains(f, "blood thinning") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one blood thinner warning, got %d in %v", count, factors)
	}

	factors = c.RiskFactors("itchy eyes and sneezing", models.PatientContext{HasAllergies: true, TakingMedications: true})
	if !containsSubstring(factors, "allergies combined") {
		t.Errorf("expected allergy and medication factor, got %v", factors)
	}
}

func TestRedFlags(t *testing.T) {
	c := NewClassifier()

	flags := c.RedFlags("chest pain and high fever")
	if len(flags) != 1 || flags[0] != "chest pain" {
		t.Errorf("expected only the critical phrase, got %v", flags)
	}

	flags = c.RedFlags("seizure then vomiting blood")
	if len(flags) != 2 {
		t.Fatalf("expected two red flags, got %v", flags)
	}

	if got := c.RedFlags("sore throat and runny nose"); got != nil {
		t.Errorf("expected no red flags, got %v", got)
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
