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

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL,
	}, 0.3, 5*time.Second, 2)
	client.retryDelay = time.Millisecond
	return client
}

func openAIResponse(content string) chatResponse {
	return chatResponse{
		ID:    "chatcmpl-123",
		Model: "gpt-4o-mini",
		Choices: []chatChoice{
			{Message: chatMessage{Role: "assistant", Content: content}},
		},
		Usage: chatUsage{PromptTokens: 10, CompletionTokens: 20},
	}
}

func TestOpenAICompleteSuccess(t *testing.T) {
	var gotReq chatRequest
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openAIResponse(`{"keywords":["a"]}`))
	})

	result, err := client.Complete(context.Background(), Request{
		System:     "You are a planner.",
		Prompt:     "plan this",
		JSONOutput: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"keywords":["a"]}`, result.Content)
	assert.Equal(t, "gpt-4o-mini", result.Model)
	assert.Equal(t, 10, result.InputTokens)
	assert.Equal(t, 20, result.OutputTokens)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
}

func TestOpenAICompleteOmitsSystemWhenEmpty(t *testing.T) {
	var gotReq chatRequest
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(openAIResponse("ok"))
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)

	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Nil(t, gotReq.ResponseFormat)
}

func TestOpenAICompleteRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(openAIResponse("recovered"))
	})

	result, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAICompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(openAIErrorResponse{
			Error: openAIErrorDetail{Message: "bad model", Type: "invalid_request_error"},
		})
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad model", apiErr.Message)
	assert.False(t, apiErr.IsTransient())
}

func TestOpenAICompleteExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
	// maxRetries=2 means 3 total attempts.
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{ID: "x"})
	})

	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestOpenAICompleteContextCancelled(t *testing.T) {
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.retryDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIDefaults(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k"}, 0.2, 0, -1)
	assert.Equal(t, defaultOpenAIBaseURL, client.baseURL)
	assert.Equal(t, defaultOpenAIModel, client.model)
	assert.Equal(t, 0, client.maxRetries)
	assert.Equal(t, "openai", client.Provider())
	assert.Equal(t, defaultOpenAIModel, client.Model())
}
