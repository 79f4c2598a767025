package agent

import (
	"context"
	"encoding/json"
)

// RunOptions carries caller-supplied overrides forwarded to the graph,
// mirroring the per-request configurable block of the wire protocol.
type RunOptions struct {
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// RunInput is one invocation's input to a graph.
type RunInput struct {
	// RunID correlates all events of this invocation.
	RunID string
	// ThreadID identifies the durable conversation.
	ThreadID string
	// History is the thread's prior message history, oldest first.
	History []Message
	// State is the graph-private checkpoint payload from the previous
	// run on this thread, nil on a fresh thread. Opaque to the engine
	// and the store; round-trips byte-for-byte.
	State json.RawMessage
	// Input is the new user message.
	Input Message
	// Options are per-call overrides.
	Options RunOptions
}

// RunResult is a graph's completed output for one invocation.
type RunResult struct {
	// Message is the assistant reply. Required.
	Message *Message
	// State is the updated graph-private checkpoint payload; nil keeps
	// the previous state.
	State json.RawMessage
}

// EmitFunc delivers an intermediate event (token or custom_update) to the
// run's event sequence. Emit returns an error when the caller has gone
// away; graphs should stop producing and return promptly.
type EmitFunc func(ev StreamEvent) error

// Graph is a runnable agent. Implementations produce a reply from the
// thread's history plus new input, optionally emitting intermediate events
// while streaming. Graphs must be safe for concurrent runs on distinct
// threads.
type Graph interface {
	// Invoke drives the graph to completion and returns the reply.
	Invoke(ctx context.Context, in RunInput) (*RunResult, error)

	// Stream drives the graph, delivering token and custom_update events
	// through emit in generation order, then returns the completed reply.
	// The terminal message and end events are appended by the engine,
	// never emitted by the graph.
	Stream(ctx context.Context, in RunInput, emit EmitFunc) (*RunResult, error)
}

// Capabilities declares what an agent supports, for discovery.
type Capabilities struct {
	Streaming bool `json:"streaming"`
	Tools     bool `json:"tools"`
}

// Descriptor is an agent's static metadata, immutable after registration.
type Descriptor struct {
	AgentID      string         `json:"agent_id"`
	Description  string         `json:"description"`
	Capabilities Capabilities   `json:"capabilities"`
	DefaultModel string         `json:"default_model,omitempty"`
	Defaults     map[string]any `json:"defaults,omitempty"`
}
