package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentserve-dev/agentserve/agent"
)

// Option configures a remote client.
type Option func(*remoteTransport)

// WithHTTPClient overrides the HTTP client, e.g. for custom timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *remoteTransport) { t.http = hc }
}

// WithAuthToken sends the token as a bearer credential on every request.
func WithAuthToken(token string) Option {
	return func(t *remoteTransport) { t.token = token }
}

// WithDefaultAgent sets the agent used when Params names none. The
// server's own default applies otherwise.
func WithDefaultAgent(agentID string) Option {
	return func(t *remoteTransport) { t.defaultAgent = agentID }
}

// remoteTransport speaks the HTTP/SSE wire protocol.
type remoteTransport struct {
	baseURL      string
	http         *http.Client
	token        string
	defaultAgent string
}

// New creates a client for a remote server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	t := &remoteTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Streaming runs have no meaningful overall deadline; callers
		// bound them with the request context.
		http: &http.Client{Timeout: 0},
	}
	for _, opt := range opts {
		opt(t)
	}
	return &Client{t: t}
}

type wireInvokeRequest struct {
	Message     string  `json:"message"`
	ThreadID    string  `json:"thread_id,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type wireInvokeResponse struct {
	RunID    string        `json:"run_id"`
	ThreadID string        `json:"thread_id"`
	Message  agent.Message `json:"message"`
}

type wireErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (t *remoteTransport) invokePath(p Params, verb string) string {
	agentID := p.AgentID
	if agentID == "" {
		agentID = t.defaultAgent
	}
	if agentID == "" {
		return "/" + verb
	}
	return "/agents/" + url.PathEscape(agentID) + "/" + verb
}

func (t *remoteTransport) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return req, nil
}

// decodeError turns a non-2xx response into the service's coded error.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var wire wireErrorResponse
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error.Code != "" {
		return agent.NewError(agent.Code(wire.Error.Code), wire.Error.Message)
	}
	return agent.NewError(agent.CodeTransport,
		fmt.Sprintf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
}

func (t *remoteTransport) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := t.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return agent.NewError(agent.CodeTransport, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return agent.NewError(agent.CodeTransport, "decode response").WithCause(err)
	}
	return nil
}

func (t *remoteTransport) agents(ctx context.Context) ([]agent.Descriptor, error) {
	var out struct {
		Agents []agent.Descriptor `json:"agents"`
	}
	if err := t.doJSON(ctx, http.MethodGet, "/agents", nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

func (t *remoteTransport) invoke(ctx context.Context, p Params) (*Result, error) {
	wire := wireInvokeRequest{
		Message:     p.Message,
		ThreadID:    p.ThreadID,
		Model:       p.Options.Model,
		Temperature: p.Options.Temperature,
		MaxTokens:   p.Options.MaxTokens,
	}
	var out wireInvokeResponse
	if err := t.doJSON(ctx, http.MethodPost, t.invokePath(p, "invoke"), wire, &out); err != nil {
		return nil, err
	}
	return &Result{RunID: out.RunID, ThreadID: out.ThreadID, Message: out.Message}, nil
}

func (t *remoteTransport) history(ctx context.Context, threadID string) ([]agent.Message, error) {
	var out struct {
		Messages []agent.Message `json:"messages"`
	}
	path := "/threads/" + url.PathEscape(threadID) + "/history"
	if err := t.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// remoteStream adapts an SSE response body to the EventStream interface.
type remoteStream struct {
	body   io.ReadCloser
	parser *sseParser
	done   bool
}

func (t *remoteTransport) stream(ctx context.Context, p Params) (EventStream, error) {
	wire := wireInvokeRequest{
		Message:     p.Message,
		ThreadID:    p.ThreadID,
		Model:       p.Options.Model,
		Temperature: p.Options.Temperature,
		MaxTokens:   p.Options.MaxTokens,
	}
	req, err := t.newRequest(ctx, http.MethodPost, t.invokePath(p, "stream"), wire)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, agent.NewError(agent.CodeTransport, "request failed").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	return &remoteStream{body: resp.Body, parser: newSSEParser(resp.Body)}, nil
}

// Recv returns the next event. Unknown kinds are passed through with the
// raw frame preserved so newer servers stay usable.
func (s *remoteStream) Recv() (agent.StreamEvent, error) {
	if s.done {
		return agent.StreamEvent{}, io.EOF
	}

	for {
		sse, err := s.parser.readEvent()
		if err != nil {
			if err == io.EOF {
				s.done = true
			}
			return agent.StreamEvent{}, err
		}
		if sse.Data == "[DONE]" {
			s.done = true
			return agent.StreamEvent{}, io.EOF
		}
		if sse.Data == "" {
			continue
		}

		var ev agent.StreamEvent
		if err := json.Unmarshal([]byte(sse.Data), &ev); err != nil {
			return agent.StreamEvent{}, agent.NewError(agent.CodeTransport, "decode event").WithCause(err)
		}
		ev.Raw = json.RawMessage(sse.Data)

		if ev.Terminal() {
			// Nothing meaningful follows; the next Recv reports EOF
			// even if the server never sent its sentinel.
			s.done = true
		}
		return ev, nil
	}
}

// Close releases the underlying connection. Always call it, also after a
// normal end of stream.
func (s *remoteStream) Close() error {
	s.done = true
	return s.body.Close()
}
