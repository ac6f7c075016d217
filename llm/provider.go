// Package llm provides LLM provider abstractions.
//
// Provider is the one interface every chat vendor adapter satisfies.
// Each adapter hides:
// - SDK client setup and API key handling
// - Mapping ChatMessage onto the vendor's request shape
// - How the vendor asks for JSON output, if at all

package llm

import "context"

// Provider is a single chat-completion backend. The conductor only sees
// this surface, so adapters are swappable in tests.
type Provider interface {
	// Name is the canonical provider name ("openai", "gemini", ...).
	Name() string

	// Model is the model identifier requests are sent to.
	Model() string

	// Chat sends the conversation and returns the reply text.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)

	// ChatWithFormat is Chat with an output format request. Vendors
	// without a native JSON mode treat the format as a hint.
	ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error)
}
