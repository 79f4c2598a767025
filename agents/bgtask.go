package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/pkg/llm"
)

const bgTaskSystemPrompt = "You are a helpful assistant. While you work, a background task reports its progress to the user."

// taskUpdate is the payload shape of the custom events this graph emits.
type taskUpdate struct {
	TaskID string `json:"task_id"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Result string `json:"result,omitempty"`
}

// BgTask is a chat graph that interleaves custom task progress events with
// its token stream, demonstrating out-of-band updates a UI can render as a
// live task list.
type BgTask struct {
	model  llm.ChatModel
	prompt string
}

// NewBgTask creates a background-task graph backed by the given model.
func NewBgTask(model llm.ChatModel) *BgTask {
	return &BgTask{model: model, prompt: bgTaskSystemPrompt}
}

func (b *BgTask) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	resp, err := b.model.Complete(ctx, b.request(in))
	if err != nil {
		return nil, fmt.Errorf("bg-task completion: %w", err)
	}
	return b.result(resp), nil
}

func (b *BgTask) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
	taskID := uuid.NewString()

	if err := emitTask(emit, in.RunID, taskUpdate{TaskID: taskID, Name: "compile-answer", State: "new"}); err != nil {
		return nil, err
	}
	if err := emitTask(emit, in.RunID, taskUpdate{TaskID: taskID, Name: "compile-answer", State: "running"}); err != nil {
		return nil, err
	}

	resp, err := b.model.Stream(ctx, b.request(in), func(token string) error {
		return emit(agent.TokenEvent(in.RunID, token))
	})
	if err != nil {
		return nil, fmt.Errorf("bg-task stream: %w", err)
	}

	if err := emitTask(emit, in.RunID, taskUpdate{TaskID: taskID, Name: "compile-answer", State: "complete", Result: "success"}); err != nil {
		return nil, err
	}
	return b.result(resp), nil
}

func emitTask(emit agent.EmitFunc, runID string, update taskUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal task update: %w", err)
	}
	return emit(agent.CustomEvent(runID, payload))
}

func (b *BgTask) request(in agent.RunInput) llm.Request {
	messages := make([]agent.Message, 0, len(in.History)+2)
	messages = append(messages, agent.NewSystemMessage(b.prompt))
	messages = append(messages, in.History...)
	messages = append(messages, in.Input)

	return llm.Request{
		Model:       in.Options.Model,
		Messages:    messages,
		Temperature: in.Options.Temperature,
		MaxTokens:   in.Options.MaxTokens,
	}
}

func (b *BgTask) result(resp *llm.Response) *agent.RunResult {
	msg := agent.NewAssistantMessage(resp.Content).
		WithMetadata(agent.MetaModel, resp.Model)
	return &agent.RunResult{Message: &msg}
}
