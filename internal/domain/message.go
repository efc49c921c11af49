package domain

import "time"

// Role identifies who produced a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn of the assessment conversation. QuestionID tags
// which catalogue question an assistant turn was asking.
type ChatMessage struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	QuestionID *int      `json:"questionId,omitempty"`
}
