package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/agentserve-dev/agentserve/agent"
)

// Mock is a scripted ChatModel for tests. Responses are consumed in order;
// once exhausted the last one repeats. Stream splits the response content
// into whitespace-separated tokens.
type Mock struct {
	mu        sync.Mutex
	responses []Response
	next      int

	// Err, when set, is returned by every call.
	Err error

	// Requests records every request received, in order.
	Requests []Request
}

// NewMock creates a mock that replies with the given contents.
func NewMock(contents ...string) *Mock {
	m := &Mock{}
	for _, c := range contents {
		m.responses = append(m.responses, Response{Content: c, Model: "mock"})
	}
	return m
}

// AddResponse appends a full response, useful for scripting tool calls.
func (m *Mock) AddResponse(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// Name returns the provider name.
func (m *Mock) Name() string { return "mock" }

// Complete returns the next scripted response.
func (m *Mock) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := m.take(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stream emits the next scripted response one token at a time.
func (m *Mock) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	resp, err := m.take(req)
	if err != nil {
		return nil, err
	}
	words := strings.Fields(resp.Content)
	for i, w := range words {
		token := w
		if i < len(words)-1 {
			token += " "
		}
		if err := onToken(token); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (m *Mock) take(req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.responses) == 0 {
		return &Response{Content: "mock response", Model: "mock"}, nil
	}
	idx := m.next
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.next++
	resp := m.responses[idx]
	return &resp, nil
}

// LastUserContent returns the content of the final human message in the most
// recent request, or the empty string when none was recorded.
func (m *Mock) LastUserContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return ""
	}
	req := m.Requests[len(m.Requests)-1]
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == agent.RoleHuman {
			return req.Messages[i].Content
		}
	}
	return ""
}
