package agent

import (
	"errors"
	"fmt"
)

// Code classifies errors crossing the engine and transport boundaries.
type Code string

const (
	// CodeUnknownAgent is the not-found class: the requested agent_id has
	// no registration.
	CodeUnknownAgent Code = "UNKNOWN_AGENT"
	// CodeDuplicateAgent is a startup-time misconfiguration: an agent_id
	// was registered twice. Fatal at load.
	CodeDuplicateAgent Code = "DUPLICATE_AGENT"
	// CodeAgentExecution wraps any failure while driving a graph, calling
	// a model provider, or running the moderation gate.
	CodeAgentExecution Code = "AGENT_EXECUTION"
	// CodeStore wraps thread state store load/save failures. A load
	// failure for an existing thread is data corruption, never masked as
	// a fresh thread.
	CodeStore Code = "STORE"
	// CodeTransport covers serialization and connection failures at the
	// wire boundary.
	CodeTransport Code = "TRANSPORT"
)

// Error is a classified error carrying run context.
// The invocation engine never swallows an underlying error: it wraps the
// cause with the run's identifiers so callers can correlate failures.
type Error struct {
	Code     Code
	Message  string
	RunID    string
	AgentID  string
	ThreadID string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.AgentID != "" {
		msg += " (agent=" + e.AgentID
		if e.ThreadID != "" {
			msg += " thread=" + e.ThreadID
		}
		if e.RunID != "" {
			msg += " run=" + e.RunID
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRun attaches run context identifiers.
func (e *Error) WithRun(runID, agentID, threadID string) *Error {
	e.RunID = runID
	e.AgentID = agentID
	e.ThreadID = threadID
	return e
}

// CodeOf extracts the classification from err, or "" for unclassified
// errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
