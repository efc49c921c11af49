package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/assessor/internal/domain"
)

func TestClientComplete(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"Thanks! How many zones do you use? [QUESTION_ID:7]"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "sk-test", "gpt", time.Second)
	completion, err := client.Complete(context.Background(), Request{
		Messages:    []Message{{Role: "system", Content: "primer"}, {Role: "user", Content: "hello"}},
		Temperature: 0.7,
		MaxTokens:   800,
	})
	require.NoError(t, err)
	assert.Equal(t, "Thanks! How many zones do you use?", completion.Text)
	require.NotNil(t, completion.SuggestedQuestionID)
	assert.Equal(t, 7, *completion.SuggestedQuestionID)

	assert.Equal(t, "gpt", got.Model)
	require.Len(t, got.Messages, 2)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 800, *got.MaxTokens)
}

func TestClientCompleteSendsZeroTemperature(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "m", time.Second)
	_, err := client.Complete(context.Background(), Request{
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0,
		MaxTokens:   10,
	})
	require.NoError(t, err)

	temp, ok := got["temperature"]
	require.True(t, ok, "temperature missing from request body: %v", got)
	assert.Equal(t, float64(0), temp)
	assert.Equal(t, float64(10), got["max_tokens"])
}

func TestClientCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "gpt", time.Second)
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Contains(t, err.Error(), "slow down")
}

func TestClientCompleteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "gpt", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestExtractQuestionMarker(t *testing.T) {
	tests := []struct {
		name string
		in   string
		text string
		id   *int
	}{
		{name: "none", in: "Plain reply.", text: "Plain reply."},
		{name: "trailing", in: "Which region? [QUESTION_ID:12]", text: "Which region?", id: intPtr(12)},
		{name: "mid sentence", in: "Next [QUESTION_ID:3] is about storage.", text: "Next  is about storage.", id: intPtr(3)},
		{name: "first wins", in: "[QUESTION_ID:4] then [QUESTION_ID:5]", text: "then", id: intPtr(4)},
		{name: "malformed ignored", in: "See [QUESTION_ID:abc]", text: "See [QUESTION_ID:abc]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, id := ExtractQuestionMarker(tt.in)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.id, id)
		})
	}
}

func intPtr(v int) *int { return &v }
