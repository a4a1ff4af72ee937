package domain

import "strings"

// Mode is the audience a summary or conversation is written for
type Mode string

const (
	ModeClinician Mode = "clinician"
	ModePatient   Mode = "patient"
)

// DefaultMode is the audience a new session starts in
const DefaultMode = ModePatient

// Modes lists every audience mode in generation order
var Modes = []Mode{ModeClinician, ModePatient}

// ViewType returns the view_type tag the remote service expects
func (m Mode) ViewType() string {
	if m == ModeClinician {
		return "doctor"
	}
	return "patient"
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeClinician || m == ModePatient
}

// ParseMode accepts a mode name or a remote view_type tag
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clinician", "doctor":
		return ModeClinician, nil
	case "patient":
		return ModePatient, nil
	default:
		return "", NewValidationError("unknown mode: " + s)
	}
}

// SuggestedQuestions returns starter questions for the chat in the given mode
func SuggestedQuestions(m Mode) []string {
	if m == ModeClinician {
		return []string{
			"Summarize the patient's current medication regimen",
			"What are the abnormal lab values?",
			"List all upcoming procedures",
			"Are there any potential drug interactions?",
		}
	}
	return []string{
		"What should I know about my medications?",
		"When is my next appointment?",
		"Are there any test results I should be aware of?",
		"What do my recent lab results mean?",
	}
}
