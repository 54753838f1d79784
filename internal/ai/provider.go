package ai

import "context"

// Message is a provider-agnostic chat message.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Provider is a model backend that can answer a conversation.
// The chat endpoint is written against this interface so the model
// server can be swapped without touching the HTTP layer.
type Provider interface {
	// Complete sends a list of messages and returns the assistant's response text.
	Complete(ctx context.Context, messages []Message) (string, error)
}
