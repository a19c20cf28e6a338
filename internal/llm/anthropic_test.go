package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnthropicClient(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-5",
		BaseURL: server.URL,
	}, 0.3, 5*time.Second, 2)
	client.retryDelay = time.Millisecond
	return client
}

func anthropicResponse(text string) messagesResponse {
	return messagesResponse{
		ID:    "msg_123",
		Type:  "message",
		Role:  "assistant",
		Model: "claude-sonnet-4-5",
		Content: []contentBlock{
			{Type: "text", Text: text},
		},
		Usage: anthropicUsage{InputTokens: 15, OutputTokens: 30},
	}
}

func TestAnthropicCompleteSuccess(t *testing.T) {
	var gotReq messagesRequest
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(anthropicResponse("synthesized review"))
	})

	result, err := client.Complete(context.Background(), Request{
		System: "You are a reviewer.",
		Prompt: "write a review",
	})
	require.NoError(t, err)

	assert.Equal(t, "synthesized review", result.Content)
	assert.Equal(t, "claude-sonnet-4-5", result.Model)
	assert.Equal(t, 15, result.InputTokens)
	assert.Equal(t, 30, result.OutputTokens)
	assert.Equal(t, "You are a reviewer.", gotReq.System)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestAnthropicCompleteSkipsNonTextBlocks(t *testing.T) {
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse("actual text")
		resp.Content = append([]contentBlock{{Type: "thinking"}}, resp.Content...)
		_ = json.NewEncoder(w).Encode(resp)
	})

	result, err := client.Complete(context.Background(), Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "actual text", result.Content)
}

func TestAnthropicCompleteRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(anthropicErrorResponse{
				Type:  "error",
				Error: anthropicAPIErrorDetail{Type: "rate_limit_error", Message: "slow down"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(anthropicResponse("ok"))
	})

	result, err := client.Complete(context.Background(), Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicCompleteDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(anthropicErrorResponse{
			Type:  "error",
			Error: anthropicAPIErrorDetail{Type: "authentication_error", Message: "invalid key"},
		})
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "go"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid key", apiErr.Message)
	assert.Equal(t, "authentication_error", apiErr.Type)
}

func TestAnthropicCompleteNoContentBlocks(t *testing.T) {
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(messagesResponse{ID: "msg_1"})
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content blocks")
}

func TestAnthropicDefaults(t *testing.T) {
	client := NewAnthropicClient(AnthropicConfig{APIKey: "k", Model: "claude-sonnet-4-5"}, 0.2, 0, -1)
	assert.Equal(t, defaultAnthropicBaseURL, client.baseURL)
	assert.Equal(t, 0, client.maxRetries)
	assert.Equal(t, "anthropic", client.Provider())
}
