// Package triage implements deterministic emergency classification of symptom
// text. A single rule table backs both the leveled classifier and the
// weighted-threshold emergency check, plus the care advice lookups built on
// the same matches.
package triage

import (
	"regexp"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// Scoring constants for the weighted-threshold variant.
const (
	// emergencyScoreThreshold is the weighted score at or above which
	// IsEmergency reports true.
	emergencyScoreThreshold = 8
	// patternWeight is the score contribution of any matching pattern rule.
	patternWeight = 6
	// severePainBonus is added when the patient self-reports pain level "9-10".
	severePainBonus = 8
	// reportedEmergencyBonus is added when the patient checked the emergency
	// warning signs flag.
	reportedEmergencyBonus = 10
	// ageRiskBonus is added for pediatric ("0-17") and elderly ("70+")
	// patients, but only when symptoms already scored above zero.
	ageRiskBonus = 2
)

// keywordRule binds a phrase to its emergency level and its weighted score.
// Entries with level EmergencyNone contribute to the weighted score only.
type keywordRule struct {
	phrase string
	level  models.EmergencyLevel
	weight int
}

// patternRule binds a compiled expression to its emergency level. All
// patterns carry patternWeight in the weighted variant.
type patternRule struct {
	re    *regexp.Regexp
	level models.EmergencyLevel
}

// emergencyKeywords is the shared keyword table. Matching is
// case-insensitive substring matching against normalized text.
var emergencyKeywords = []keywordRule{
	// Critical: immediate emergency care
	{"chest pain", models.EmergencyCritical, 10},
	{"difficulty breathing", models.EmergencyCritical, 10},
	{"shortness of breath", models.EmergencyCritical, 10},
	{"unconscious", models.EmergencyCritical, 10},
	{"loss of consciousness", models.EmergencyCritical, 10},
	{"heart attack", models.EmergencyCritical, 10},
	{"stroke", models.EmergencyCritical, 10},
	{"severe bleeding", models.EmergencyCritical, 10},
	{"anaphylaxis", models.EmergencyCritical, 10},
	{"seizure", models.EmergencyCritical, 9},

	// High: urgent care needed
	{"severe headache", models.EmergencyHigh, 8},
	{"sudden severe pain", models.EmergencyHigh, 8},
	{"vomiting blood", models.EmergencyHigh, 9},
	{"coughing blood", models.EmergencyHigh, 8},
	{"severe allergic reaction", models.EmergencyHigh, 8},
	{"overdose", models.EmergencyHigh, 8},
	{"poisoning", models.EmergencyHigh, 8},
	{"severe burn", models.EmergencyHigh, 8},
	{"head trauma", models.EmergencyHigh, 8},

	// Medium: prompt attention
	{"high fever", models.EmergencyMedium, 7},
	{"severe abdominal pain", models.EmergencyMedium, 7},
	{"severe dizziness", models.EmergencyMedium, 6},
	{"severe dehydration", models.EmergencyMedium, 6},
	{"pregnancy bleeding", models.EmergencyMedium, 7},
	{"severe confusion", models.EmergencyMedium, 6},

	// Low: routine follow-up
	{"persistent fever", models.EmergencyLow, 3},
	{"ongoing pain", models.EmergencyLow, 3},
	{"unusual symptoms", models.EmergencyLow, 3},
	{"worsening condition", models.EmergencyLow, 3},
	{"concerning changes", models.EmergencyLow, 3},

	// Weighted-only aliases: broad phrases that score but do not set a level
	// on their own (the pattern rules cover the leveled cases).
	{"severe pain", models.EmergencyNone, 7},
	{"confusion", models.EmergencyNone, 6},
}

// emergencyPatterns is the shared pattern table.
var emergencyPatterns = []patternRule{
	{regexp.MustCompile(`\b(sudden|severe|intense|excruciating)\s+(chest|heart|breathing)`), models.EmergencyCritical},
	{regexp.MustCompile(`\b(can't|cannot)\s+(breathe|breath|move|speak)`), models.EmergencyHigh},
	{regexp.MustCompile(`\b(severe|intense)\s+(pain|headache|bleeding)`), models.EmergencyMedium},
}

// specialtyKeywords maps referral specialties to the symptom vocabulary that
// suggests them. Best match by keyword count wins; ties resolve to the first
// listed specialty.
var specialtyKeywords = []struct {
	name     string
	keywords []string
}{
	{"Cardiology", []string{"chest pain", "palpitations", "heart", "irregular heartbeat", "racing heart"}},
	{"Neurology", []string{"headache", "migraine", "dizziness", "numbness", "tingling", "seizure", "memory loss"}},
	{"Gastroenterology", []string{"stomach", "abdominal", "nausea", "vomiting", "diarrhea", "constipation", "heartburn"}},
	{"Dermatology", []string{"rash", "skin", "itching", "mole", "acne", "hives"}},
	{"Orthopedics", []string{"joint", "bone", "back pain", "knee", "shoulder", "fracture", "sprain"}},
	{"Psychiatry", []string{"anxiety", "depression", "stress", "insomnia", "panic", "mood"}},
	{"Endocrinology", []string{"excessive thirst", "weight gain", "weight loss", "thyroid", "fatigue"}},
	{"Pulmonology", []string{"cough", "wheezing", "asthma", "phlegm", "breathing"}},
}

// drugInteractionWarnings flag medication classes mentioned in symptom text
// when the patient reports taking medications.
var drugInteractionWarnings = []struct {
	trigger string
	warning string
}{
	{"blood thinner", "Possible interaction risk with blood thinning medication"},
	{"warfarin", "Possible interaction risk with blood thinning medication"},
	{"aspirin", "Aspirin use can increase bleeding risk with other medications"},
	{"ibuprofen", "NSAID use can interact with other medications"},
	{"sedative", "Sedative use can mask or worsen neurological symptoms"},
	{"sleeping pill", "Sedative use can mask or worsen neurological symptoms"},
	{"alcohol", "Alcohol can interact with many medications"},
}
