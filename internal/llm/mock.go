package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// ModeMock selects MockClient.
const ModeMock = "MOCK"

// MockClient returns canned acknowledgements and never suggests a question,
// leaving next-question choice to the selector.
type MockClient struct{}

// NewMockClient creates a new mock completer.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Complete acknowledges the last user message.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if last == "" {
		return &Completion{Text: "Let's get started with the assessment."}, nil
	}
	return &Completion{Text: "Thanks, I've noted that."}, nil
}

var _ Completer = (*MockClient)(nil)

// NewCompleter returns MockClient when mode is ModeMock, otherwise a Client.
func NewCompleter(mode, baseURL, apiKey, model string, timeout time.Duration) Completer {
	if strings.EqualFold(mode, ModeMock) {
		slog.Info("LLM mode is MOCK, using mock completion client")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, model, timeout)
}
