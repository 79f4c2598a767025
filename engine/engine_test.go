package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/pkg/moderation"
	"github.com/agentserve-dev/agentserve/pkg/thread"
)

// scriptedGraph emits fixed tokens and replies with their concatenation,
// or with a fixed reply when set.
type scriptedGraph struct {
	tokens []string
	reply  string
	state  json.RawMessage
	err    error
}

func (g *scriptedGraph) content() string {
	if g.reply != "" {
		return g.reply
	}
	return strings.Join(g.tokens, "")
}

func (g *scriptedGraph) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	msg := agent.NewAssistantMessage(g.content())
	return &agent.RunResult{Message: &msg, State: g.state}, nil
}

func (g *scriptedGraph) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
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

// echoHistoryGraph replies with a summary of the history it was handed,
// making persistence observable from the outside.
type echoHistoryGraph struct{}

func (echoHistoryGraph) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	var parts []string
	for _, m := range in.History {
		parts = append(parts, fmt.Sprintf("%s:%s", m.Role, m.Content))
	}
	parts = append(parts, fmt.Sprintf("%s:%s", in.Input.Role, in.Input.Content))
	msg := agent.NewAssistantMessage(strings.Join(parts, "|"))
	return &agent.RunResult{Message: &msg}, nil
}

func (g echoHistoryGraph) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
	return g.Invoke(ctx, in)
}

// stateCountingGraph persists a run counter in graph-private state.
type stateCountingGraph struct{}

func (stateCountingGraph) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	var st struct {
		Runs int `json:"runs"`
	}
	if in.State != nil {
		if err := json.Unmarshal(in.State, &st); err != nil {
			return nil, err
		}
	}
	st.Runs++
	raw, _ := json.Marshal(st)
	msg := agent.NewAssistantMessage(fmt.Sprintf("run %d", st.Runs))
	return &agent.RunResult{Message: &msg, State: raw}, nil
}

func (g stateCountingGraph) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
	return g.Invoke(ctx, in)
}

// failingStore wraps a Store and fails saves on demand.
type failingStore struct {
	thread.Store
	failSave bool
	loadErr  error
}

func (s *failingStore) Load(ctx context.Context, threadID string) (*thread.Checkpoint, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.Store.Load(ctx, threadID)
}

func (s *failingStore) Save(ctx context.Context, cp *thread.Checkpoint) error {
	if s.failSave {
		return errors.New("disk full")
	}
	return s.Store.Save(ctx, cp)
}

func newTestEngine(t *testing.T, graph agent.Graph, opts ...Option) (*Engine, *thread.MemoryStore) {
	t.Helper()
	reg := agent.NewRegistry()
	if err := reg.Register("test-agent", graph, agent.Descriptor{Description: "test"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	store := thread.NewMemoryStore()
	return New(reg, store, opts...), store
}

func TestInvokeGeneratesThreadID(t *testing.T) {
	e, store := newTestEngine(t, &scriptedGraph{reply: "hello"})

	res, err := e.Invoke(context.Background(), Request{AgentID: "test-agent", Message: "hi"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.ThreadID == "" {
		t.Fatal("expected generated thread id")
	}
	if got := res.Message.MetadataString(agent.MetaThreadID, ""); got != res.ThreadID {
		t.Errorf("thread id metadata = %q, want %q", got, res.ThreadID)
	}
	if res.RunID == "" || res.Message.RunID != res.RunID {
		t.Errorf("run id not stamped: result %q, message %q", res.RunID, res.Message.RunID)
	}

	cp, err := store.Load(context.Background(), res.ThreadID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cp.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(cp.History))
	}
	if cp.History[0].Role != agent.RoleHuman || cp.History[0].Content != "hi" {
		t.Errorf("history[0] = %+v", cp.History[0])
	}
	if cp.History[1].Role != agent.RoleAssistant || cp.History[1].Content != "hello" {
		t.Errorf("history[1] = %+v", cp.History[1])
	}
}

func TestInvokeTwoTurnHistory(t *testing.T) {
	e, _ := newTestEngine(t, echoHistoryGraph{})

	first, err := e.Invoke(context.Background(), Request{AgentID: "test-agent", Message: "one"})
	if err != nil {
		t.Fatalf("first Invoke() error = %v", err)
	}

	second, err := e.Invoke(context.Background(), Request{
		AgentID:  "test-agent",
		ThreadID: first.ThreadID,
		Message:  "two",
	})
	if err != nil {
		t.Fatalf("second Invoke() error = %v", err)
	}
	// The second run must see the whole first exchange.
	want := "human:one|assistant:human:one|human:two"
	if second.Message.Content != want {
		t.Errorf("second reply = %q, want %q", second.Message.Content, want)
	}
	if second.ThreadID != first.ThreadID {
		t.Errorf("thread id changed across turns: %q vs %q", first.ThreadID, second.ThreadID)
	}
}

func TestInvokeStateRoundTrip(t *testing.T) {
	e, store := newTestEngine(t, stateCountingGraph{})

	first, err := e.Invoke(context.Background(), Request{AgentID: "test-agent", Message: "a"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	second, err := e.Invoke(context.Background(), Request{
		AgentID: "test-agent", ThreadID: first.ThreadID, Message: "b",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if second.Message.Content != "run 2" {
		t.Errorf("second reply = %q, want %q", second.Message.Content, "run 2")
	}

	cp, _ := store.Load(context.Background(), first.ThreadID)
	if string(cp.State) != `{"runs":2}` {
		t.Errorf("persisted state = %s", cp.State)
	}
}

func TestInvokeUnknownAgentMutatesNothing(t *testing.T) {
	e, store := newTestEngine(t, &scriptedGraph{reply: "x"})

	_, err := e.Invoke(context.Background(), Request{
		AgentID:  "nope",
		ThreadID: "t-1",
		Message:  "hi",
	})
	if !agent.IsCode(err, agent.CodeUnknownAgent) {
		t.Fatalf("Invoke() error = %v, want UNKNOWN_AGENT", err)
	}
	if _, err := store.Load(context.Background(), "t-1"); !errors.Is(err, thread.ErrThreadNotFound) {
		t.Errorf("unknown agent touched the store: %v", err)
	}
}

func TestInvokeModerationReplacesReply(t *testing.T) {
	gate, err := moderation.NewKeywordGateWithPatterns(map[string]string{
		"blocked": `BLOCKED`,
	})
	if err != nil {
		t.Fatalf("NewKeywordGateWithPatterns() error = %v", err)
	}
	e, store := newTestEngine(t, &scriptedGraph{reply: "this is BLOCKED content"}, WithModeration(gate))

	res, err := e.Invoke(context.Background(), Request{AgentID: "test-agent", Message: "hi"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Message.Content != moderation.SafetyNotice {
		t.Errorf("Content = %q, want safety notice", res.Message.Content)
	}
	if got := res.Message.MetadataString(agent.MetaModeration, ""); got != "blocked" {
		t.Errorf("moderation metadata = %q, want %q", got, "blocked")
	}

	// The safety notice, not the flagged content, is what persists.
	cp, _ := store.Load(context.Background(), res.ThreadID)
	if cp.History[1].Content != moderation.SafetyNotice {
		t.Errorf("persisted reply = %q", cp.History[1].Content)
	}
}

type erroringGate struct{}

func (erroringGate) Check(ctx context.Context, candidate string) (moderation.Verdict, error) {
	return moderation.Verdict{}, errors.New("moderation api down")
}

func TestInvokeGateErrorFailsRun(t *testing.T) {
	e, store := newTestEngine(t, &scriptedGraph{reply: "fine"}, WithModeration(erroringGate{}))

	_, err := e.Invoke(context.Background(), Request{
		AgentID: "test-agent", ThreadID: "t-1", Message: "hi",
	})
	if !agent.IsCode(err, agent.CodeAgentExecution) {
		t.Fatalf("Invoke() error = %v, want AGENT_EXECUTION", err)
	}
	if _, err := store.Load(context.Background(), "t-1"); !errors.Is(err, thread.ErrThreadNotFound) {
		t.Error("gate failure persisted a checkpoint")
	}
}

func TestInvokeGraphErrorWrapped(t *testing.T) {
	cause := errors.New("model exploded")
	e, store := newTestEngine(t, &scriptedGraph{err: cause})

	_, err := e.Invoke(context.Background(), Request{
		AgentID: "test-agent", ThreadID: "t-1", Message: "hi",
	})
	if !agent.IsCode(err, agent.CodeAgentExecution) {
		t.Fatalf("Invoke() error = %v, want AGENT_EXECUTION", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not wrapped: %v", err)
	}
	if _, err := store.Load(context.Background(), "t-1"); !errors.Is(err, thread.ErrThreadNotFound) {
		t.Error("failed run persisted a checkpoint")
	}
}

func TestInvokeSaveFailureKeepsPriorCheckpoint(t *testing.T) {
	graph := &scriptedGraph{reply: "reply"}
	reg := agent.NewRegistry()
	if err := reg.Register("test-agent", graph, agent.Descriptor{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	mem := thread.NewMemoryStore()
	fs := &failingStore{Store: mem}
	e := New(reg, fs)

	first, err := e.Invoke(context.Background(), Request{AgentID: "test-agent", Message: "one"})
	if err != nil {
		t.Fatalf("first Invoke() error = %v", err)
	}

	fs.failSave = true
	_, err = e.Invoke(context.Background(), Request{
		AgentID: "test-agent", ThreadID: first.ThreadID, Message: "two",
	})
	if !agent.IsCode(err, agent.CodeStore) {
		t.Fatalf("Invoke() error = %v, want STORE", err)
	}

	cp, err := mem.Load(context.Background(), first.ThreadID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cp.History) != 2 {
		t.Errorf("prior checkpoint changed: %d messages", len(cp.History))
	}
}

func TestInvokeLoadErrorIsStoreError(t *testing.T) {
	reg := agent.NewRegistry()
	_ = reg.Register("test-agent", &scriptedGraph{reply: "x"}, agent.Descriptor{})
	fs := &failingStore{Store: thread.NewMemoryStore(), loadErr: errors.New("connection refused")}
	e := New(reg, fs)

	_, err := e.Invoke(context.Background(), Request{
		AgentID: "test-agent", ThreadID: "t-1", Message: "hi",
	})
	if !agent.IsCode(err, agent.CodeStore) {
		t.Fatalf("Invoke() error = %v, want STORE", err)
	}
}

func TestHistory(t *testing.T) {
	e, _ := newTestEngine(t, &scriptedGraph{reply: "pong"})

	res, err := e.Invoke(context.Background(), Request{AgentID: "test-agent", Message: "ping"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	history, err := e.History(context.Background(), res.ThreadID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Content != "ping" || history[1].Content != "pong" {
		t.Errorf("history = %+v", history)
	}

	if _, err := e.History(context.Background(), "missing"); !errors.Is(err, thread.ErrThreadNotFound) {
		t.Errorf("History(missing) error = %v", err)
	}
}

func TestAgentsDiscovery(t *testing.T) {
	e, _ := newTestEngine(t, &scriptedGraph{reply: "x"})

	descs := e.Agents()
	if len(descs) != 1 || descs[0].AgentID != "test-agent" {
		t.Fatalf("Agents() = %+v", descs)
	}

	if _, err := e.Describe("missing"); !agent.IsCode(err, agent.CodeUnknownAgent) {
		t.Errorf("Describe(missing) error = %v", err)
	}
}
