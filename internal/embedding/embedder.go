// Package embedding computes text embeddings and cosine similarity for
// relevance ranking.
//
// Paper embeddings are cached in-process keyed by canonical identifier, with
// a content hash guarding against stale entries when the underlying text
// changes. Embedding computation must be deterministic for identical input
// text; the cache relies on this to return the same vector for repeated
// queries against the same paper.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default values for the OpenAI embeddings endpoint.
const (
	defaultEmbedBaseURL    = "https://api.openai.com/v1"
	defaultEmbedModel      = "text-embedding-3-small"
	defaultEmbedRetryDelay = time.Second
	defaultEmbedMaxRetries = 3
)

// Embedder produces a fixed-dimension vector for arbitrary text.
// Implementations must be deterministic for identical input and safe for
// concurrent use.
type Embedder interface {
	// Embed computes the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector dimension this embedder produces.
	Dimensions() int
}

// embedRequest is the OpenAI embeddings API request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the OpenAI embeddings API response body.
type embedResponse struct {
	Data []embedData `json:"data"`
}

// embedData is a single embedding in the response.
type embedData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// embedErrorResponse is an error payload from the embeddings API.
type embedErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Config holds the parameters needed to create an OpenAI embedder.
type Config struct {
	// APIKey is the API key for the embeddings endpoint.
	APIKey string
	// Model is the embedding model name.
	Model string
	// BaseURL is the API base URL (empty means the OpenAI default).
	BaseURL string
	// Dimensions is the expected vector dimension.
	Dimensions int
	// Timeout bounds each embeddings API call.
	Timeout time.Duration
}

// OpenAIEmbedder implements Embedder using the OpenAI embeddings API.
type OpenAIEmbedder struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	maxRetries int
	retryDelay time.Duration
}

// Compile-time check that *OpenAIEmbedder implements Embedder.
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates a new embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultEmbedBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultEmbedModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: cfg.Dimensions,
		maxRetries: defaultEmbedMaxRetries,
		retryDelay: defaultEmbedRetryDelay,
	}
}

// Dimensions returns the configured vector dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed computes the embedding for text. Transient errors (429, 5xx,
// network) are retried with linear backoff; context cancellation is
// respected between retries.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding: empty input text")
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("embedding: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		vec, retryable, err := e.doRequest(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embedding: exhausted %d retries: %w", e.maxRetries, lastErr)
}

// doRequest performs a single embeddings API call. The second return value
// reports whether the error is retryable.
func (e *OpenAIEmbedder) doRequest(ctx context.Context, text string) ([]float32, bool, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, false, fmt.Errorf("embedding: failed to marshal request: %w", err)
	}

	endpoint := e.baseURL + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("embedding: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, true, fmt.Errorf("embedding: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500

		var errResp embedErrorResponse
		msg := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, retryable, fmt.Errorf("embedding: API error (status %d): %s", resp.StatusCode, msg)
	}

	var embResp embedResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, false, fmt.Errorf("embedding: failed to unmarshal response: %w", err)
	}

	if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
		return nil, false, fmt.Errorf("embedding: empty embedding in response")
	}

	vec := embResp.Data[0].Embedding
	if e.dimensions > 0 && len(vec) != e.dimensions {
		return nil, false, fmt.Errorf("embedding: unexpected dimension %d, want %d", len(vec), e.dimensions)
	}

	return vec, false, nil
}
