package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/agentserve-dev/agentserve/agent"
)

func TestMockScriptedResponses(t *testing.T) {
	m := NewMock("first", "second")

	resp, err := m.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q", resp.Content, "first")
	}

	resp, _ = m.Complete(context.Background(), Request{})
	if resp.Content != "second" {
		t.Errorf("Content = %q, want %q", resp.Content, "second")
	}

	// Exhausted scripts repeat the last response.
	resp, _ = m.Complete(context.Background(), Request{})
	if resp.Content != "second" {
		t.Errorf("Content = %q, want %q", resp.Content, "second")
	}
}

func TestMockStreamTokensJoinToContent(t *testing.T) {
	m := NewMock("one two three")

	var tokens []string
	resp, err := m.Stream(context.Background(), Request{}, func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("tokens = %d, want 3", len(tokens))
	}
	if got := strings.Join(tokens, ""); got != resp.Content {
		t.Errorf("joined tokens = %q, content = %q", got, resp.Content)
	}
}

func TestMockRecordsRequests(t *testing.T) {
	m := NewMock("ok")
	_, _ = m.Complete(context.Background(), Request{
		Messages: []agent.Message{agent.NewUserMessage("ping")},
	})
	if got := m.LastUserContent(); got != "ping" {
		t.Errorf("LastUserContent() = %q, want %q", got, "ping")
	}
}
