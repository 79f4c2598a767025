// Package llm defines the chat-model boundary used by the built-in agent
// graphs. Providers are invoked only inside a graph; the invocation engine
// never talks to a model directly and only requires that a graph surface
// provider failures as a single error per run.
package llm

import (
	"context"
	"encoding/json"

	"github.com/agentserve-dev/agentserve/agent"
)

// Tool describes a function the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is one model invocation.
type Request struct {
	Model       string
	Messages    []agent.Message
	Temperature float32
	MaxTokens   int
	Tools       []Tool
}

// Usage reports token accounting for one invocation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a model's completed output.
type Response struct {
	Content   string
	ToolCalls []agent.ToolCall
	Model     string
	Usage     Usage
}

// TokenFunc receives incremental text during a streaming invocation.
// Returning an error stops generation.
type TokenFunc func(token string) error

// ChatModel is a conversational model provider.
type ChatModel interface {
	// Name returns the provider name (e.g., "openai", "bedrock").
	Name() string

	// Complete drives one blocking model invocation.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream drives one invocation, delivering text increments through
	// onToken in generation order, and returns the completed response.
	// The concatenation of tokens equals the response content.
	Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error)
}
