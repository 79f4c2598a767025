package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient is the slice of the OpenAI client this provider needs,
// kept narrow for testability.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// OpenAI implements ChatModel against the OpenAI chat completions API
// (or any compatible endpoint).
type OpenAI struct {
	client       OpenAIClient
	defaultModel string
}

// NewOpenAI creates a provider with a default client.
func NewOpenAI(apiKey, defaultModel string) *OpenAI {
	return NewOpenAIWithClient(openai.NewClient(apiKey), defaultModel)
}

// NewOpenAIWithClient creates a provider with a custom client (useful for
// testing or alternate base URLs).
func NewOpenAIWithClient(client OpenAIClient, defaultModel string) *OpenAI {
	if defaultModel == "" {
		defaultModel = openai.GPT4oMini
	}
	return &OpenAI{client: client, defaultModel: defaultModel}
}

// Name returns the provider name.
func (p *OpenAI) Name() string { return "openai" }

// Complete drives one blocking model invocation.
func (p *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.convertRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	return &Response{
		Content:   choice.Message.Content,
		ToolCalls: convertToolCalls(choice.Message.ToolCalls),
		Model:     resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream drives one streaming invocation, accumulating content and tool
// call deltas until the server closes the stream.
func (p *OpenAI) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.convertRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	var content string
	calls := map[int]*openai.ToolCall{}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream recv: %w", err)
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content += delta.Content
			if err := onToken(delta.Content); err != nil {
				return nil, err
			}
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc, ok := calls[idx]
			if !ok {
				acc = &openai.ToolCall{}
				calls[idx] = acc
			}
			if tc.ID != "" {
				acc.ID = tc.ID
			}
			if tc.Function.Name != "" {
				acc.Function.Name = tc.Function.Name
			}
			acc.Function.Arguments += tc.Function.Arguments
		}
	}

	assembled := make([]openai.ToolCall, 0, len(calls))
	for i := 0; i < len(calls); i++ {
		if acc, ok := calls[i]; ok {
			assembled = append(assembled, *acc)
		}
	}

	return &Response{
		Content:   content,
		ToolCalls: convertToolCalls(assembled),
		Model:     model,
	}, nil
}

func (p *OpenAI) convertRequest(req Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	var tools []openai.Tool
	for _, t := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Tools:       tools,
	}
}

func convertMessage(m agent.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{Content: m.Content}

	switch m.Role {
	case agent.RoleSystem:
		msg.Role = openai.ChatMessageRoleSystem
	case agent.RoleAssistant:
		msg.Role = openai.ChatMessageRoleAssistant
	case agent.RoleTool:
		msg.Role = openai.ChatMessageRoleTool
		msg.ToolCallID = m.ToolCallID
	default:
		msg.Role = openai.ChatMessageRoleUser
	}

	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return msg
}

func convertToolCalls(calls []openai.ToolCall) []agent.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]agent.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
