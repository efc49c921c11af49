// Package llm is the text-completion collaborator used by the dialog
// orchestrator: an OpenAI-compatible chat-completions client, the assessment
// prompt builder, and a deterministic mock.
package llm

import (
	"context"

	"github.com/ashureev/assessor/internal/domain"
)

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completion is the typed collaborator result. SuggestedQuestionID is the
// catalogue question the model says it is now asking, if any.
type Completion struct {
	Text                string
	SuggestedQuestionID *int
}

// Completer produces assistant replies. Implementations return errors
// wrapping domain.ErrUpstream on transport or API failure.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// FromChatMessages converts stored turns into completion messages.
func FromChatMessages(history []domain.ChatMessage) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		out = append(out, Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
