// Package llm provides text-completion clients for LLM providers.
//
// The pipeline consumes a completion capability as an unreliable external
// service: every call is bounded by a timeout, and transient failures
// (429, 5xx, network errors) are retried a bounded number of times at the
// call site. Callers that can degrade gracefully (the query planner) treat
// a final failure as a fallback signal, not a fatal error.
package llm

import "context"

// Request is a single completion request.
type Request struct {
	// System is the system prompt establishing the assistant's role.
	System string

	// Prompt is the user message.
	Prompt string

	// JSONOutput requests strict JSON output from providers that support
	// a JSON response format.
	JSONOutput bool

	// MaxTokens bounds the completion length. Zero uses the provider default.
	MaxTokens int
}

// Result is a completion response.
type Result struct {
	// Content is the completion text.
	Content string

	// Model is the model that produced the completion.
	Model string

	// InputTokens and OutputTokens report token usage when the provider
	// includes it.
	InputTokens  int
	OutputTokens int
}

// Completer produces text completions. Implementations must be safe for
// concurrent use and must respect context cancellation.
type Completer interface {
	// Complete sends one completion request and returns the result.
	// Transient provider errors are retried internally; the returned error
	// is final.
	Complete(ctx context.Context, req Request) (*Result, error)

	// Provider returns the provider name (e.g. "openai").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
