// Package client is the Go client for the agent service. The same API
// runs against a remote server over HTTP/SSE or against an in-process
// engine, so tests and embedded deployments can skip the network.
package client

import (
	"context"

	"github.com/agentserve-dev/agentserve/agent"
)

// Params describes one invocation.
type Params struct {
	// AgentID selects the agent; empty uses the service default.
	AgentID string
	// ThreadID continues a conversation; empty starts a new thread.
	ThreadID string
	// Message is the user's input text.
	Message string
	// Options are per-call model overrides.
	Options agent.RunOptions
}

// Result is a completed invocation.
type Result struct {
	RunID    string
	ThreadID string
	Message  agent.Message
}

// EventStream delivers a streaming run's events. Recv returns io.EOF
// after the terminal event; Close abandons the stream early.
type EventStream interface {
	Recv() (agent.StreamEvent, error)
	Close() error
}

// transport is the backend a Client speaks to, remote or in-process.
type transport interface {
	agents(ctx context.Context) ([]agent.Descriptor, error)
	invoke(ctx context.Context, p Params) (*Result, error)
	stream(ctx context.Context, p Params) (EventStream, error)
	history(ctx context.Context, threadID string) ([]agent.Message, error)
}

// Client invokes agents synchronously, asynchronously, or streaming.
type Client struct {
	t transport
}

// Agents lists the service's agents and their capabilities.
func (c *Client) Agents(ctx context.Context) ([]agent.Descriptor, error) {
	return c.t.agents(ctx)
}

// Invoke runs the agent to completion and returns the final reply.
func (c *Client) Invoke(ctx context.Context, p Params) (*Result, error) {
	return c.t.invoke(ctx, p)
}

// AsyncResult is delivered on the channel returned by InvokeAsync.
type AsyncResult struct {
	Result *Result
	Err    error
}

// InvokeAsync runs Invoke in a goroutine and delivers exactly one result
// on the returned channel.
func (c *Client) InvokeAsync(ctx context.Context, p Params) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		res, err := c.t.invoke(ctx, p)
		ch <- AsyncResult{Result: res, Err: err}
	}()
	return ch
}

// Stream starts a streaming run. Events arrive in generation order; the
// final assistant message precedes the end event. Unknown event kinds are
// passed through for forward compatibility.
func (c *Client) Stream(ctx context.Context, p Params) (EventStream, error) {
	return c.t.stream(ctx, p)
}

// History returns a thread's persisted messages, oldest first.
func (c *Client) History(ctx context.Context, threadID string) ([]agent.Message, error) {
	return c.t.history(ctx, threadID)
}
