// Package llm provides the completion-protocol client used by the agent
// loop. The only production implementation talks to Ollama's /api/chat.
package llm

import "context"

// Client is the interface the agent loop uses to reach a model.
type Client interface {
	// Chat sends a non-streaming chat request and returns the complete
	// response, including any tool calls on the assistant message.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// ChatStream sends a streaming chat request. Each content token is
	// passed to callback as it arrives; a nil callback buffers silently.
	// The returned response carries the accumulated content and every
	// tool call seen in the stream, in emission order.
	ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
