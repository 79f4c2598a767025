// Package engine runs agent invocations: it resolves the agent, replays
// the thread's checkpoint, drives the graph, gates the reply through
// moderation, and persists the updated checkpoint exactly once per
// completed run.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/pkg/moderation"
	"github.com/agentserve-dev/agentserve/pkg/thread"
)

const tracerName = "github.com/agentserve-dev/agentserve/engine"

// Request describes one invocation.
type Request struct {
	// AgentID selects the registered agent. Required.
	AgentID string
	// ThreadID continues an existing conversation. Empty starts a new
	// thread with a generated identifier, returned on the result.
	ThreadID string
	// Message is the user's input text.
	Message string
	// Options are per-call model overrides.
	Options agent.RunOptions
}

// Result is a completed blocking invocation.
type Result struct {
	RunID    string
	ThreadID string
	Message  agent.Message
}

// Engine coordinates registry, store, and moderation gate for every run.
type Engine struct {
	registry *agent.Registry
	store    thread.Store
	gate     moderation.Gate
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithModeration sets the moderation gate applied to every reply.
func WithModeration(gate moderation.Gate) Option {
	return func(e *Engine) { e.gate = gate }
}

// New creates an engine over a registry and a checkpoint store. Moderation
// defaults to disabled.
func New(registry *agent.Registry, store thread.Store, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		gate:     moderation.Disabled{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the resolved pieces of one invocation.
type run struct {
	graph    agent.Graph
	runID    string
	threadID string
	prior    *thread.Checkpoint
	input    agent.Message
}

// prepare resolves the agent and loads the thread checkpoint. It mutates
// nothing, so failures here leave all state untouched.
func (e *Engine) prepare(ctx context.Context, req Request) (*run, error) {
	graph, err := e.registry.Get(req.AgentID)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	prior, err := e.store.Load(ctx, threadID)
	if err != nil && !errors.Is(err, thread.ErrThreadNotFound) {
		return nil, agent.NewError(agent.CodeStore, "load checkpoint").
			WithCause(err).WithRun(runID, req.AgentID, threadID)
	}
	if prior == nil {
		prior = &thread.Checkpoint{ThreadID: threadID, AgentID: req.AgentID}
	}

	input := agent.NewUserMessage(req.Message)
	input.RunID = runID

	return &run{
		graph:    graph,
		runID:    runID,
		threadID: threadID,
		prior:    prior,
		input:    input,
	}, nil
}

func (r *run) runInput(req Request) agent.RunInput {
	return agent.RunInput{
		RunID:    r.runID,
		ThreadID: r.threadID,
		History:  r.prior.History,
		State:    r.prior.State,
		Input:    r.input,
		Options:  req.Options,
	}
}

// Invoke runs the agent to completion and returns the final reply. The
// checkpoint is saved only after the reply passed moderation; any failure
// leaves the thread's prior checkpoint untouched.
func (e *Engine) Invoke(ctx context.Context, req Request) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Invoke", trace.WithAttributes(
		attribute.String("agent.id", req.AgentID),
	))
	defer span.End()

	r, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("run.id", r.runID))

	result, err := r.graph.Invoke(ctx, r.runInput(req))
	if err != nil {
		return nil, e.executionError(err, r, req.AgentID)
	}

	final, err := e.finalize(ctx, r, req.AgentID, result)
	if err != nil {
		return nil, err
	}
	return &Result{RunID: r.runID, ThreadID: r.threadID, Message: final}, nil
}

// finalize moderates the reply and persists the new checkpoint. The
// moderated form of the reply is what gets persisted, so a flagged reply
// never resurfaces through history.
func (e *Engine) finalize(ctx context.Context, r *run, agentID string, result *agent.RunResult) (agent.Message, error) {
	if result == nil || result.Message == nil {
		return agent.Message{}, agent.NewError(agent.CodeAgentExecution, "graph returned no reply").
			WithRun(r.runID, agentID, r.threadID)
	}

	final := *result.Message
	verdict, err := e.gate.Check(ctx, final.Content)
	if err != nil {
		return agent.Message{}, agent.NewError(agent.CodeAgentExecution, "moderation gate").
			WithCause(err).WithRun(r.runID, agentID, r.threadID)
	}
	if verdict.Flagged {
		final.Content = moderation.SafetyNotice
		final.ToolCalls = nil
		final = final.WithMetadata(agent.MetaModeration, verdict.Category)
	}
	final.RunID = r.runID
	final = final.WithMetadata(agent.MetaThreadID, r.threadID)

	state := result.State
	if state == nil {
		state = r.prior.State
	}
	cp := &thread.Checkpoint{
		ThreadID:  r.threadID,
		AgentID:   agentID,
		UpdatedAt: time.Now().UTC(),
		History:   append(append([]agent.Message{}, r.prior.History...), r.input, final),
		State:     state,
	}
	if err := e.store.Save(ctx, cp); err != nil {
		return agent.Message{}, agent.NewError(agent.CodeStore, "save checkpoint").
			WithCause(err).WithRun(r.runID, agentID, r.threadID)
	}
	return final, nil
}

func (e *Engine) executionError(err error, r *run, agentID string) error {
	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		return err
	}
	return agent.NewError(agent.CodeAgentExecution, "agent run failed").
		WithCause(err).WithRun(r.runID, agentID, r.threadID)
}

// Agents lists the registered agent descriptors for discovery.
func (e *Engine) Agents() []agent.Descriptor {
	return e.registry.List()
}

// Describe returns one agent's descriptor.
func (e *Engine) Describe(agentID string) (agent.Descriptor, error) {
	return e.registry.Descriptor(agentID)
}

// History returns a thread's persisted message history, oldest first.
func (e *Engine) History(ctx context.Context, threadID string) ([]agent.Message, error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, thread.ErrThreadNotFound) {
			return nil, err
		}
		return nil, agent.NewError(agent.CodeStore, "load checkpoint").
			WithCause(err).WithRun("", "", threadID)
	}
	return cp.History, nil
}
