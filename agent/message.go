package agent

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleCustom    Role = "custom"
)

// Well-known metadata keys set by the invocation engine.
const (
	// MetaModeration carries the moderation category when the engine
	// replaced a flagged reply with the safety notice.
	MetaModeration = "moderation"
	// MetaThreadID carries the thread identifier, so callers that let the
	// server generate one can continue the conversation.
	MetaThreadID = "thread_id"
	// MetaModel carries the model name the graph ran with, when known.
	MetaModel = "model"
	// MetaError carries an in-band error class when a graph absorbed a
	// failure into an assistant reply instead of failing the run.
	MetaError = "error"
)

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message represents a single conversation turn or event.
// Every message belongs to exactly one run; tool messages reference a
// tool call previously emitted in the same run via ToolCallID.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new human message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleHuman, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewToolMessage creates a new tool result message answering toolCallID.
func NewToolMessage(toolCallID, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Timestamp:  time.Now().UTC(),
	}
}

// WithToolCalls adds tool calls to the message and returns it for chaining.
func (m Message) WithToolCalls(calls []ToolCall) Message {
	m.ToolCalls = calls
	return m
}

// WithMetadata sets a metadata key and returns the message for chaining.
func (m Message) WithMetadata(key string, value any) Message {
	meta := make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = value
	m.Metadata = meta
	return m
}

// MetadataString retrieves a metadata value as a string, returning the
// default when the key is absent or not a string.
func (m Message) MetadataString(key, def string) string {
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return def
}
