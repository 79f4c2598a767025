package client

import (
	"context"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/engine"
)

// localTransport runs invocations directly on an in-process engine.
type localTransport struct {
	engine       *engine.Engine
	defaultAgent string
}

// NewLocal creates a client bound to an in-process engine. defaultAgent
// serves requests that name no agent.
func NewLocal(e *engine.Engine, defaultAgent string) *Client {
	return &Client{t: &localTransport{engine: e, defaultAgent: defaultAgent}}
}

func (t *localTransport) resolve(agentID string) string {
	if agentID != "" {
		return agentID
	}
	return t.defaultAgent
}

func (t *localTransport) request(p Params) engine.Request {
	return engine.Request{
		AgentID:  t.resolve(p.AgentID),
		ThreadID: p.ThreadID,
		Message:  p.Message,
		Options:  p.Options,
	}
}

func (t *localTransport) agents(ctx context.Context) ([]agent.Descriptor, error) {
	return t.engine.Agents(), nil
}

func (t *localTransport) invoke(ctx context.Context, p Params) (*Result, error) {
	res, err := t.engine.Invoke(ctx, t.request(p))
	if err != nil {
		return nil, err
	}
	return &Result{RunID: res.RunID, ThreadID: res.ThreadID, Message: res.Message}, nil
}

func (t *localTransport) stream(ctx context.Context, p Params) (EventStream, error) {
	return t.engine.Stream(ctx, t.request(p))
}

func (t *localTransport) history(ctx context.Context, threadID string) ([]agent.Message, error) {
	return t.engine.History(ctx, threadID)
}
