package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/pkg/llm"
)

const assistantSystemPrompt = "You are a helpful research assistant. Use the calculator tool for any arithmetic instead of computing it yourself."

// maxToolSteps bounds the model/tool loop so a confused model cannot spin
// forever.
const maxToolSteps = 5

// Error classes surfaced in-band on absorbed failures.
const (
	errClassTimeout    = "timeout"
	errClassPermission = "permission"
	errClassDefault    = "default"
)

var calculatorTool = llm.Tool{
	Name:        "calculator",
	Description: "Evaluate an arithmetic expression. Supports +, -, *, / and parentheses.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"expression": {
				"type": "string",
				"description": "The expression to evaluate, e.g. \"(2+3)*4\"."
			}
		},
		"required": ["expression"]
	}`),
}

// Assistant is a tool-calling graph that loops between the model and its
// tools until the model produces a plain reply. Model failures it can
// classify are absorbed into an apologetic assistant message instead of
// failing the run.
type Assistant struct {
	model  llm.ChatModel
	prompt string
}

// NewAssistant creates an assistant graph backed by the given model.
func NewAssistant(model llm.ChatModel) *Assistant {
	return &Assistant{model: model, prompt: assistantSystemPrompt}
}

func (a *Assistant) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
	return a.run(ctx, in, nil)
}

func (a *Assistant) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
	return a.run(ctx, in, emit)
}

func (a *Assistant) run(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
	messages := make([]agent.Message, 0, len(in.History)+2)
	messages = append(messages, agent.NewSystemMessage(a.prompt))
	messages = append(messages, in.History...)
	messages = append(messages, in.Input)

	for step := 0; step < maxToolSteps; step++ {
		req := llm.Request{
			Model:       in.Options.Model,
			Messages:    messages,
			Temperature: in.Options.Temperature,
			MaxTokens:   in.Options.MaxTokens,
			Tools:       []llm.Tool{calculatorTool},
		}

		var resp *llm.Response
		var err error
		if emit != nil {
			resp, err = a.model.Stream(ctx, req, func(token string) error {
				return emit(agent.TokenEvent(in.RunID, token))
			})
		} else {
			resp, err = a.model.Complete(ctx, req)
		}
		if err != nil {
			// Caller cancellation is not the model's failure; let the
			// run fail normally.
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			msg := absorbedErrorMessage(err)
			return &agent.RunResult{Message: &msg}, nil
		}

		if len(resp.ToolCalls) == 0 {
			msg := agent.NewAssistantMessage(resp.Content).
				WithMetadata(agent.MetaModel, resp.Model)
			return &agent.RunResult{Message: &msg}, nil
		}

		call := agent.NewAssistantMessage(resp.Content).WithToolCalls(resp.ToolCalls)
		messages = append(messages, call)
		for _, tc := range resp.ToolCalls {
			messages = append(messages, runTool(tc))
		}
	}

	return nil, fmt.Errorf("assistant exceeded %d tool steps", maxToolSteps)
}

func runTool(tc agent.ToolCall) agent.Message {
	if tc.Name != "calculator" {
		return agent.NewToolMessage(tc.ID, fmt.Sprintf("unknown tool %q", tc.Name))
	}

	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(tc.Arguments, &args); err != nil {
		return agent.NewToolMessage(tc.ID, fmt.Sprintf("bad arguments: %v", err))
	}

	v, err := Calculate(args.Expression)
	if err != nil {
		return agent.NewToolMessage(tc.ID, fmt.Sprintf("calculation failed: %v", err))
	}
	return agent.NewToolMessage(tc.ID, strconv.FormatFloat(v, 'g', -1, 64))
}

// absorbedErrorMessage turns a model failure into an in-band assistant
// reply carrying the failure class in metadata, so conversations degrade
// gracefully instead of erroring out.
func absorbedErrorMessage(err error) agent.Message {
	class := classifyError(err)

	var content string
	switch class {
	case errClassTimeout:
		content = "The model took too long to respond. Please try again."
	case errClassPermission:
		content = "The model provider rejected the request. Check the service credentials."
	default:
		content = "Something went wrong while generating a response. Please try again."
	}

	return agent.NewAssistantMessage(content).WithMetadata(agent.MetaError, class)
}

func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return errClassTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return errClassTimeout
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "accessdenied") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "401"):
		return errClassPermission
	default:
		return errClassDefault
	}
}
