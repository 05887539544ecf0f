package analysis

import (
	"strings"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// urgencyFor maps the classifier outcome onto the urgency label carried by
// canned payloads.
func urgencyFor(level models.EmergencyLevel) string {
	if level == models.EmergencyNone {
		return "routine"
	}
	return "urgent"
}

// demoCondition pairs a trigger substring with the canned condition returned
// for it. Entries are checked in order so demo output is deterministic.
type demoCondition struct {
	trigger   string
	condition ParsedCondition
}

var demoRecommendations = []string{
	"Monitor symptoms for 24-48 hours",
	"Maintain adequate hydration and rest",
	"Consider over-the-counter symptomatic treatment",
	"Consult healthcare provider if symptoms worsen",
}

var demoConditions = []demoCondition{
	{
		trigger: "headache",
		condition: ParsedCondition{
			Name:        "Tension-Type Headache",
			Description: "A common primary headache disorder characterized by bilateral, pressing or tightening pain of mild to moderate intensity.",
			Probability: "High",
			Severity:    "mild",
			ICDCode:     "G44.2",
		},
	},
	{
		trigger: "fatigue",
		condition: ParsedCondition{
			Name:        "Chronic Fatigue Syndrome",
			Description: "A complex disorder characterized by extreme fatigue that cannot be explained by underlying medical conditions.",
			Probability: "Medium",
			Severity:    "moderate",
			ICDCode:     "G93.3",
		},
	},
	{
		trigger: "cough",
		condition: ParsedCondition{
			Name:        "Upper Respiratory Tract Infection",
			Description: "Viral infection affecting the nose, throat, and upper airways, commonly known as the common cold.",
			Probability: "High",
			Severity:    "mild",
			ICDCode:     "J06.9",
		},
	},
}

// demoAnalysis builds the deterministic payload served when no provider is
// configured. Conditions are selected by substring match against the
// normalized symptom text.
func demoAnalysis(symptoms models.SymptomText, level models.EmergencyLevel) ParsedAnalysis {
	lower := strings.ToLower(symptoms.String())

	var conditions []ParsedCondition
	for _, dc := range demoConditions {
		if strings.Contains(lower, dc.trigger) {
			cond := dc.condition
			cond.Recommendations = demoRecommendations
			conditions = append(conditions, cond)
		}
	}
	if len(conditions) == 0 {
		conditions = []ParsedCondition{
			{
				Name:        "Undifferentiated Symptom Complex",
				Description: "Symptoms require professional medical evaluation for accurate diagnosis and appropriate treatment planning.",
				Probability: "Medium",
				Severity:    "moderate",
				Recommendations: []string{
					"Schedule appointment with primary care physician",
					"Document symptom progression and triggers",
					"Maintain symptom diary for healthcare provider review",
				},
			},
		}
	}

	return ParsedAnalysis{
		Conditions: conditions,
		GeneralRecommendations: []string{
			"This is a demonstration mode - professional medical evaluation recommended",
			"Symptom analysis requires comprehensive clinical assessment",
			"Contact healthcare provider for personalized medical advice",
		},
		Disclaimers: []string{
			"DEMONSTRATION MODE: This analysis is for educational purposes only",
			"Not intended as medical diagnosis or treatment recommendation",
			"Professional medical consultation strongly recommended",
			"Emergency services (911) should be contacted for urgent symptoms",
		},
		ConfidenceScore: 0.75,
		UrgencyLevel:    urgencyFor(level),
	}
}

// quotaAnalysis builds the payload served when the provider rejects the call
// for quota or billing reasons. The credential is present but unusable, so the
// guidance is administrative rather than medical.
func quotaAnalysis(level models.EmergencyLevel) ParsedAnalysis {
	return ParsedAnalysis{
		Conditions: []ParsedCondition{
			{
				Name:        "Service Configuration Required",
				Description: "AI analysis service requires active billing configuration. Your API credentials are valid but usage quota has been exceeded.",
				Probability: "Certain",
				Severity:    "administrative",
				Recommendations: []string{
					"Verify billing configuration for the analysis provider",
					"Add payment method or purchase additional API credits",
					"Monitor the usage dashboard for quota management",
					"Contact system administrator if issue persists",
				},
			},
		},
		GeneralRecommendations: []string{
			"Professional medical evaluation recommended for symptom assessment",
			"Document symptoms for healthcare provider consultation",
			"Seek immediate medical attention if symptoms are severe or worsening",
		},
		Disclaimers: []string{
			"AI analysis temporarily unavailable due to service configuration",
			"This system is for educational purposes only",
			"Professional medical consultation recommended",
			"Emergency services (911) available for urgent medical needs",
		},
		ConfidenceScore: 0.0,
		UrgencyLevel:    urgencyFor(level),
	}
}

// errorAnalysis builds the payload served for any non-quota provider failure.
func errorAnalysis(level models.EmergencyLevel) ParsedAnalysis {
	return ParsedAnalysis{
		Conditions: []ParsedCondition{
			{
				Name:        "Analysis Service Unavailable",
				Description: "Symptom analysis service is temporarily unavailable due to technical difficulties. Professional medical evaluation recommended.",
				Probability: "N/A",
				Severity:    "administrative",
				Recommendations: []string{
					"Consult healthcare provider for symptom evaluation",
					"Document symptoms and their progression",
					"Seek immediate medical attention if symptoms are severe",
					"Retry analysis service later",
				},
			},
		},
		GeneralRecommendations: []string{
			"Professional medical consultation recommended",
			"Monitor symptoms and seek care if worsening",
			"Contact healthcare provider for personalized advice",
		},
		Disclaimers: []string{
			"Technical service interruption - professional medical advice recommended",
			"This system is for educational purposes only",
			"Always consult healthcare professionals for medical concerns",
			"Emergency services (911) available for urgent needs",
		},
		ConfidenceScore: 0.0,
		UrgencyLevel:    urgencyFor(level),
	}
}

// fallbackAnalysis is returned by Normalize when the provider's reply cannot
// be repaired into the payload shape.
func fallbackAnalysis() ParsedAnalysis {
	return ParsedAnalysis{
		Conditions: []ParsedCondition{
			{
				Name:        "Analysis Processing Error",
				Description: "Unable to process symptom analysis due to technical difficulties.",
				Probability: "N/A",
				Severity:    "administrative",
				Recommendations: []string{
					"Consult healthcare provider directly",
					"Document symptoms for medical consultation",
					"Seek immediate care if symptoms are severe",
				},
			},
		},
		GeneralRecommendations: []string{
			"Professional medical evaluation recommended",
			"Contact healthcare provider for symptom assessment",
		},
		Disclaimers: []string{
			"Analysis service temporarily unavailable",
			"Professional medical consultation recommended",
			"This system is for educational purposes only",
		},
		ConfidenceScore: 0.0,
		UrgencyLevel:    "routine",
	}
}
