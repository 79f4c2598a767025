// Package thread provides durable per-conversation state for Agentserve.
// A thread is one logical conversation; its checkpoint is the sole point of
// cross-turn memory, so the invocation engine stays stateless between calls
// and survives process restarts.
package thread

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/agentserve-dev/agentserve/agent"
)

// Common errors for storage operations.
var (
	// ErrThreadNotFound is returned by Load for a thread id with no
	// checkpoint. For a fresh id this is not a failure: the caller
	// initializes an empty checkpoint.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("thread store is closed")
)

// Checkpoint is the durable state of one thread. History is the transport-
// visible message log; State is the owning graph's private payload, opaque
// to the store, and must round-trip byte-for-byte.
type Checkpoint struct {
	ThreadID  string          `json:"thread_id"`
	AgentID   string          `json:"agent_id"`
	UpdatedAt time.Time       `json:"updated_at"`
	History   []agent.Message `json:"history"`
	State     json.RawMessage `json:"state,omitempty"`
}

// Store abstracts checkpoint persistence. Implementations must be safe for
// concurrent use, must serialize saves for the same thread id (last write
// wins, never a torn write), and should not contend across distinct
// threads.
type Store interface {
	// Load retrieves a thread's checkpoint.
	// Returns ErrThreadNotFound when the thread has never been saved.
	// Any other error means the stored data could not be read and must
	// be surfaced to the caller, never masked as a fresh thread.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Save writes a thread's checkpoint (idempotent overwrite). A failed
	// save leaves the previously stored checkpoint intact.
	Save(ctx context.Context, cp *Checkpoint) error

	// Close releases any resources held by the store.
	Close() error
}
