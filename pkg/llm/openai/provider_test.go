package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docubot-be/pkg/apperror"
	"docubot-be/pkg/llm"
)

type recordedRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func TestChat(t *testing.T) {
	var got recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Within 5 days."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL+"/v1", "key", "gpt-4o-mini", time.Second, llm.Options{Temperature: 0.5, MaxTokens: 256})
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be helpful"},
		{Role: llm.RoleUser, Content: "refunds?"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Within 5 days.", out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.5, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "refunds?", got.Messages[1].Content)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"error":{"message":"upstream"}}`},
		{"no choices", http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewProvider(srv.URL, "key", "m", time.Second, llm.Options{}).Generate(context.Background(), "hi")
			assert.ErrorIs(t, err, apperror.ErrCompletionService)
		})
	}
}
