package assistant

import (
	"fmt"

	"github.com/liliang-cn/medbrief/internal/domain"
)

const clinicianSummaryPrompt = `You are preparing a chart summary for a treating clinician.
Read the medical records below and return a single JSON object with exactly these keys:

- "current_medications": array of {"name", "dose", "frequency", "renewal_date"}
- "appointments": {"last_visit", "upcoming_visits"}
- "recent_labs": array of {"test_name", "value", "unit", "normal_range", "status"}; status is one of "normal", "high", "low"
- "major_surgeries": {"previous", "scheduled"}
- "conditions": {"major", "minor"}
- "recent_imaging": array of {"type", "date", "findings", "relevance"}
- "clinical_trial_notes": string with anything relevant to clinical trial screening

Use empty strings or empty arrays for anything the records do not mention.

Medical records:
%s

Return only the JSON object, without commentary or code fences.`

const patientSummaryPrompt = `You are explaining a person's own medical records to them.
Write in plain, friendly language with no medical jargon, and return a single JSON object with exactly these keys:

- "conditions_summary": short explanation of their current health conditions
- "medications": array of {"name", "what_it_does", "dose", "when_to_take", "renewal_date"}
- "upcoming_care": array of {"type", "date", "what_to_expect"}
- "recent_tests": short explanation of recent test results
- "surgeries": short explanation of past or planned procedures
- "allergies": array of strings
- "reminders": array of {"action", "date", "details"}

Use empty strings or empty arrays for anything the records do not mention.

Medical records:
%s

Return only the JSON object, without commentary or code fences.`

const chatSystemPrompt = `You answer questions about the medical records below.

%s

Audience: %s.
Stay concise and accurate. When the records do not contain the answer, say so plainly instead of guessing.`

const explainPrompt = `Explain the medical term "%s" so that someone without medical training understands it.

Context from the medical records: %s

Cover, briefly:
1. What it means
2. Why it matters for this person
3. Any actions or precautions that go with it`

func summaryPrompt(mode domain.Mode, records string) string {
	if mode == domain.ModeClinician {
		return fmt.Sprintf(clinicianSummaryPrompt, records)
	}
	return fmt.Sprintf(patientSummaryPrompt, records)
}

func chatPrompt(mode domain.Mode, records string) string {
	audience := "a patient reading their own records; use everyday words"
	if mode == domain.ModeClinician {
		audience = "a clinician; medical terminology is fine"
	}
	return fmt.Sprintf(chatSystemPrompt, records, audience)
}

func explainTermPrompt(term, context string) string {
	return fmt.Sprintf(explainPrompt, term, context)
}
