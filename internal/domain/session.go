package domain

// PipelineState is the summary pipeline's discriminated state
type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateGenerating PipelineState = "generating"
	StateError      PipelineState = "error"
)

// Status is the current pipeline state; Message is set only in the error state
type Status struct {
	State   PipelineState `json:"state"`
	Message string        `json:"message,omitempty"`
}

func IdleStatus() Status       { return Status{State: StateIdle} }
func GeneratingStatus() Status { return Status{State: StateGenerating} }

func ErrorStatus(message string) Status {
	return Status{State: StateError, Message: message}
}

// Snapshot is a read-only copy of session state for the presentation layer
type Snapshot struct {
	Records            string      `json:"records"`
	HasRecords         bool        `json:"has_records"`
	Mode               Mode        `json:"mode"`
	Status             Status      `json:"status"`
	Summaries          SummaryPair `json:"summaries"`
	ActiveSummary      Summary     `json:"active_summary"`
	Chat               []ChatTurn  `json:"chat"`
	SuggestedQuestions []string    `json:"suggested_questions"`
}

// ModeRequest selects the active audience mode
type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}
