package agents

import (
	"context"
	"fmt"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/pkg/llm"
)

const chatbotSystemPrompt = "You are a helpful assistant. Answer the user's questions clearly and concisely."

// Chatbot is a single-model conversational graph with no tools.
type Chatbot struct {
	model  llm.ChatModel
	prompt string
}

// NewChatbot creates a chatbot graph backed by the given model.
func NewChatbot(model llm.ChatModel) *Chatbot {
	return &Chatbot{model: model, prompt: chatbotSystemPrompt}
}

func (c *Chatbot) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	resp, err := c.model.Complete(ctx, c.request(in))
	if err != nil {
		return nil, fmt.Errorf("chatbot completion: %w", err)
	}
	return c.result(resp), nil
}

func (c *Chatbot) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
	resp, err := c.model.Stream(ctx, c.request(in), func(token string) error {
		return emit(agent.TokenEvent(in.RunID, token))
	})
	if err != nil {
		return nil, fmt.Errorf("chatbot stream: %w", err)
	}
	return c.result(resp), nil
}

func (c *Chatbot) request(in agent.RunInput) llm.Request {
	messages := make([]agent.Message, 0, len(in.History)+2)
	messages = append(messages, agent.NewSystemMessage(c.prompt))
	messages = append(messages, in.History...)
	messages = append(messages, in.Input)

	return llm.Request{
		Model:       in.Options.Model,
		Messages:    messages,
		Temperature: in.Options.Temperature,
		MaxTokens:   in.Options.MaxTokens,
	}
}

func (c *Chatbot) result(resp *llm.Response) *agent.RunResult {
	msg := agent.NewAssistantMessage(resp.Content).
		WithMetadata(agent.MetaModel, resp.Model)
	return &agent.RunResult{Message: &msg}
}
