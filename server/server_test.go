package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/engine"
	"github.com/agentserve-dev/agentserve/pkg/thread"
)

// tokenGraph streams fixed tokens and replies with their concatenation.
type tokenGraph struct {
	tokens []string
	err    error
}

func (g *tokenGraph) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	msg := agent.NewAssistantMessage(strings.Join(g.tokens, ""))
	return &agent.RunResult{Message: &msg}, nil
}

func (g *tokenGraph) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	for _, tok := range g.tokens {
		if err := emit(agent.TokenEvent(in.RunID, tok)); err != nil {
			return nil, err
		}
	}
	return g.Invoke(ctx, in)
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *thread.MemoryStore) {
	t.Helper()
	reg := agent.NewRegistry()
	if err := reg.Register("chatbot", &tokenGraph{tokens: []string{"a", "b", "c"}}, agent.Descriptor{
		Description:  "test chatbot",
		Capabilities: agent.Capabilities{Streaming: true},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("broken", &tokenGraph{err: errors.New("boom")}, agent.Descriptor{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	store := thread.NewMemoryStore()
	e := engine.New(reg, store)
	ts := httptest.NewServer(New(e, opts).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeInvokeResponse(t *testing.T, resp *http.Response) invokeResponse {
	t.Helper()
	defer resp.Body.Close()
	var out invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestListAgents(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/agents")
	if err != nil {
		t.Fatalf("GET /agents: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Agents []agent.Descriptor `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Agents) != 2 || out.Agents[0].AgentID != "chatbot" {
		t.Errorf("agents = %+v", out.Agents)
	}
}

func TestDescribeAgent(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/agents/chatbot")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/agents/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("missing agent status = %d, want 404", resp2.StatusCode)
	}
}

func TestInvokeAndThreadContinuation(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	first := decodeInvokeResponse(t, postJSON(t, ts.URL+"/agents/chatbot/invoke",
		invokeRequest{Message: "hi"}))
	if first.Message.Content != "abc" {
		t.Errorf("content = %q", first.Message.Content)
	}
	if first.ThreadID == "" || first.RunID == "" {
		t.Fatalf("identifiers missing: %+v", first)
	}
	if got := first.Message.MetadataString(agent.MetaThreadID, ""); got != first.ThreadID {
		t.Errorf("thread metadata = %q, want %q", got, first.ThreadID)
	}

	second := decodeInvokeResponse(t, postJSON(t, ts.URL+"/agents/chatbot/invoke",
		invokeRequest{Message: "again", ThreadID: first.ThreadID}))
	if second.ThreadID != first.ThreadID {
		t.Errorf("thread id changed: %q vs %q", second.ThreadID, first.ThreadID)
	}

	// History shows both exchanges.
	resp, err := http.Get(ts.URL + "/threads/" + first.ThreadID + "/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer resp.Body.Close()
	var hist struct {
		Messages []agent.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Messages) != 4 {
		t.Errorf("history length = %d, want 4", len(hist.Messages))
	}
}

func TestInvokeDefaultAgentRoute(t *testing.T) {
	ts, _ := newTestServer(t, Options{DefaultAgent: "chatbot"})

	out := decodeInvokeResponse(t, postJSON(t, ts.URL+"/invoke", invokeRequest{Message: "hi"}))
	if out.Message.Content != "abc" {
		t.Errorf("content = %q", out.Message.Content)
	}
}

func TestInvokeErrors(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp := postJSON(t, ts.URL+"/agents/missing/invoke", invokeRequest{Message: "hi"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent status = %d, want 404", resp.StatusCode)
	}
	var out errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if out.Error.Code != "UNKNOWN_AGENT" {
		t.Errorf("error code = %q", out.Error.Code)
	}

	resp2 := postJSON(t, ts.URL+"/agents/chatbot/invoke", invokeRequest{})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", resp2.StatusCode)
	}

	resp3 := postJSON(t, ts.URL+"/agents/broken/invoke", invokeRequest{Message: "hi"})
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusInternalServerError {
		t.Errorf("broken agent status = %d, want 500", resp3.StatusCode)
	}

	resp4, err := http.Get(ts.URL + "/threads/missing/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp4.Body.Close()
	if resp4.StatusCode != http.StatusNotFound {
		t.Errorf("missing thread status = %d, want 404", resp4.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	ts, _ := newTestServer(t, Options{AuthSecret: "sekret"})

	resp, err := http.Get(ts.URL + "/agents")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/agents", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp2.StatusCode)
	}

	// Health stays open without a token.
	resp3, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp3.StatusCode)
	}
}

// sseFrames splits an SSE body into its frames.
func sseFrames(t *testing.T, body []byte) []string {
	t.Helper()
	var frames []string
	for _, frame := range strings.Split(string(body), "\n\n") {
		if strings.TrimSpace(frame) != "" {
			frames = append(frames, frame)
		}
	}
	return frames
}

func TestStreamSSE(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp := postJSON(t, ts.URL+"/agents/chatbot/stream", invokeRequest{Message: "go"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	frames := sseFrames(t, buf.Bytes())

	// 3 tokens, message, end, [DONE]
	if len(frames) != 6 {
		t.Fatalf("got %d frames: %q", len(frames), frames)
	}
	if frames[len(frames)-1] != "data: [DONE]" {
		t.Errorf("last frame = %q, want [DONE] sentinel", frames[len(frames)-1])
	}

	var tokens []string
	var finalContent string
	for _, frame := range frames[:len(frames)-1] {
		data := strings.TrimPrefix(frame, "data: ")
		var ev agent.StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", frame, err)
		}
		switch ev.Kind {
		case agent.EventToken:
			tokens = append(tokens, ev.Text)
		case agent.EventMessage:
			finalContent = ev.Message.Content
		}
	}
	if got := strings.Join(tokens, ""); got != finalContent {
		t.Errorf("tokens %q != final content %q", got, finalContent)
	}
}

func TestStreamErrorFrame(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp := postJSON(t, ts.URL+"/agents/broken/stream", invokeRequest{Message: "go"})
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := buf.String()
	if !strings.Contains(body, "event: error") {
		t.Errorf("expected error event, got %q", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Errorf("error stream must not end with [DONE]: %q", body)
	}
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, Options{RateLimit: 1, RateBurst: 1})

	codes := make(map[int]int)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/agents")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		codes[resp.StatusCode]++
	}
	if codes[http.StatusTooManyRequests] == 0 {
		t.Errorf("expected at least one 429, got %v", codes)
	}
}
