package ai

import "context"

// StreamDelta represents a single chunk from a streaming model response.
type StreamDelta struct {
	// Token is the text fragment. Empty string is valid (heartbeat).
	Token string
	// Done is true when the stream is complete.
	Done bool
	// Err is non-nil if the stream encountered an error.
	Err error
}

// StreamingProvider extends Provider with token-by-token streaming.
// Providers that don't support streaming can omit this interface;
// the chat endpoint falls back to Complete() and sends a single Done line.
type StreamingProvider interface {
	Provider
	// CompleteStream sends messages and returns a channel that emits tokens
	// as they arrive. The channel is closed when the response is complete.
	CompleteStream(ctx context.Context, messages []Message) <-chan StreamDelta
}
