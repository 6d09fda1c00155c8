// Package llm defines the Provider interface for Large Language Model backends.
//
// Voxbridge uses an LLM for two short, single-shot tasks: translating one
// message into a destination language and naming the language a piece of text
// is written in. Neither task needs streaming or tool calling, so the interface
// is a single blocking completion call.
//
// Implementations must be safe for concurrent use and must return promptly
// when ctx is cancelled.
package llm

import "context"

// CompletionRequest is one single-turn task for the model.
type CompletionRequest struct {
	// SystemPrompt holds the task instructions, sent before Messages.
	SystemPrompt string

	// Messages carries the text to work on, usually one user message.
	// Must not be empty.
	Messages []Message

	// Deterministic asks for temperature zero and, where the backend
	// supports it, a fixed sampling seed. Translations of the same text
	// should not drift between requests.
	Deterministic bool

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Model is the model that actually answered, as reported by the backend.
	// Empty if the backend does not report it.
	Model string

	// Truncated is true when generation stopped at the token limit rather
	// than at a natural end. Content is then incomplete.
	Truncated bool

	// Backend names the fallback entry that answered. Only fallback chains
	// set it.
	Backend string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
