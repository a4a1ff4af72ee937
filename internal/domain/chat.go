package domain

import "time"

// Role identifies the author of a chat turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message in the conversation about the records
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"is_error,omitempty"`
	Mode      Mode      `json:"mode,omitempty"` // audience active when the turn was added
}

// HistoryMessage is a prior turn as sent to the remote chat operation
type HistoryMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request to send a chat message
type ChatRequest struct {
	Question string `json:"question"`
}

// ChatResponse is the outcome of a chat message
type ChatResponse struct {
	Sent  bool       `json:"sent"`
	Turn  *ChatTurn  `json:"turn,omitempty"`
	Turns []ChatTurn `json:"turns"`
}

// ExplainRequest asks for a plain-language explanation of a term
type ExplainRequest struct {
	Term    string `json:"term"`
	Context string `json:"context,omitempty"`
}

// ExplainResponse carries an explanation, which may describe a failure
type ExplainResponse struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
}
