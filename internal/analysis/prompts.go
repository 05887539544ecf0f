// Package analysis orchestrates symptom analysis: it validates input, consults
// the cache, runs the deterministic emergency classifier, dispatches to the
// configured AI provider, normalizes the provider's reply, and falls back to
// canned results when the provider is absent or failing. Every call produces a
// structured result; provider failures never surface to the caller.
package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// systemPrompt instructs the provider to return the fixed JSON payload shape
// the normalizer expects.
const systemPrompt = `You are a professional medical information assistant designed to provide educational health information. You must:

CORE RESPONSIBILITIES:
1. Analyze symptoms and suggest possible conditions with medical accuracy
2. Provide educational information, never medical diagnoses
3. Always emphasize professional medical consultation
4. Include appropriate medical disclaimers
5. Assess symptom severity and urgency

RESPONSE FORMAT:
Provide a valid JSON response with this exact structure:
{
    "conditions": [
        {
            "name": "Condition Name",
            "description": "Detailed medical description",
            "probability": "High|Medium|Low",
            "recommendations": ["Specific action 1", "Specific action 2"],
            "severity": "mild|moderate|severe",
            "icd_code": "ICD-10 code if applicable"
        }
    ],
    "general_recommendations": ["Professional advice 1", "Professional advice 2"],
    "disclaimers": ["Medical disclaimer 1", "Medical disclaimer 2"],
    "confidence_score": 0.85,
    "urgency_level": "routine|urgent|emergency"
}

SAFETY REQUIREMENTS:
- Always include prominent medical disclaimers
- Emphasize this is NOT a medical diagnosis
- Recommend consulting healthcare professionals
- For serious symptoms, strongly recommend immediate medical attention
- Include confidence scoring for transparency`

// buildUserPrompt assembles the per-request prompt. Patient context is
// serialized as JSON so the provider sees the same field names the API
// accepts.
func buildUserPrompt(symptoms models.SymptomText, pctx models.PatientContext) string {
	contextInfo := ""
	if !pctx.IsZero() {
		if encoded, err := json.Marshal(pctx); err == nil {
			contextInfo = fmt.Sprintf("\nPatient Context: %s", encoded)
		}
	}

	return fmt.Sprintf(`Analyze these symptoms: %q%s

Provide:
1. 3-5 most probable conditions with detailed descriptions
2. Specific recommended actions for each condition
3. Probability assessment based on symptom presentation
4. Overall urgency level assessment
5. Confidence score for the analysis
6. Appropriate medical disclaimers

Consider:
- Symptom severity and duration
- Potential differential diagnoses
- Red flag symptoms requiring immediate attention
- Age-appropriate considerations if context provided

Respond with valid JSON only.`, symptoms.String(), contextInfo)
}
