package llm

import "context"

// Client is the provider-agnostic interface for LLM API calls.
// Implement this for each backend (OpenAI Chat Completions, Azure, local
// models behind an OpenAI-compatible gateway, etc.).
type Client interface {
	// Chat sends one fully-built payload and returns the model's response.
	// The call blocks until the endpoint answers or ctx is cancelled.
	Chat(ctx context.Context, payload Payload) (Response, error)
}
