package agent

import "encoding/json"

// EventKind discriminates the StreamEvent union.
// Consumers must treat unknown kinds as pass-through rather than fatal, so
// the union can grow without breaking existing clients.
type EventKind string

const (
	// EventToken carries one incremental chunk of generated text.
	EventToken EventKind = "token"
	// EventMessage carries a completed message, most importantly the
	// terminal assistant reply of a run.
	EventMessage EventKind = "message"
	// EventCustomUpdate carries a graph-defined progress payload, e.g.
	// background task status.
	EventCustomUpdate EventKind = "custom_update"
	// EventError is terminal and supersedes end; no events follow it.
	EventError EventKind = "error"
	// EventEnd is the normal terminal event; exactly one per run.
	EventEnd EventKind = "end"
)

// StreamEvent is one element of a run's ordered event sequence.
//
// Invariants per run: token events appear in generation order and their
// concatenated text equals the content of the subsequent assistant message
// event (unless moderation replaced it); exactly one terminal event (end or
// error) is emitted and nothing follows it.
type StreamEvent struct {
	Kind     EventKind       `json:"kind"`
	RunID    string          `json:"run_id"`
	ThreadID string          `json:"thread_id,omitempty"`
	Text     string          `json:"text,omitempty"`
	Message  *Message        `json:"message,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Detail   string          `json:"detail,omitempty"`

	// Raw preserves the undecoded frame for kinds this version does not
	// know about, so callers can still inspect them.
	Raw json.RawMessage `json:"-"`
}

// TokenEvent builds a token event for the given run.
func TokenEvent(runID, text string) StreamEvent {
	return StreamEvent{Kind: EventToken, RunID: runID, Text: text}
}

// MessageEvent builds a message event carrying a completed message.
func MessageEvent(runID string, msg *Message) StreamEvent {
	return StreamEvent{Kind: EventMessage, RunID: runID, Message: msg}
}

// CustomEvent builds a custom_update event with a graph-defined payload.
func CustomEvent(runID string, payload json.RawMessage) StreamEvent {
	return StreamEvent{Kind: EventCustomUpdate, RunID: runID, Payload: payload}
}

// ErrorEvent builds the terminal error event for a failed run.
func ErrorEvent(runID, detail string) StreamEvent {
	return StreamEvent{Kind: EventError, RunID: runID, Detail: detail}
}

// EndEvent builds the terminal end event for a successful run.
func EndEvent(runID string) StreamEvent {
	return StreamEvent{Kind: EventEnd, RunID: runID}
}

// Terminal reports whether the event ends its run.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventEnd || e.Kind == EventError
}
