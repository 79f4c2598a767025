package agents

import (
	"fmt"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/pkg/llm"
)

// DefaultAgent is the identifier served when a request names no agent.
const DefaultAgent = "chatbot"

// RegisterBuiltins registers the built-in graphs on reg, all backed by
// model.
func RegisterBuiltins(reg *agent.Registry, model llm.ChatModel) error {
	builtins := []struct {
		id    string
		graph agent.Graph
		desc  agent.Descriptor
	}{
		{
			id:    "chatbot",
			graph: NewChatbot(model),
			desc: agent.Descriptor{
				Description:  "A simple chatbot.",
				Capabilities: agent.Capabilities{Streaming: true},
				DefaultModel: model.Name(),
			},
		},
		{
			id:    "assistant",
			graph: NewAssistant(model),
			desc: agent.Descriptor{
				Description:  "A research assistant with a calculator tool.",
				Capabilities: agent.Capabilities{Streaming: true, Tools: true},
				DefaultModel: model.Name(),
			},
		},
		{
			id:    "bg-task",
			graph: NewBgTask(model),
			desc: agent.Descriptor{
				Description:  "A chatbot that reports background task progress.",
				Capabilities: agent.Capabilities{Streaming: true},
				DefaultModel: model.Name(),
			},
		},
	}

	for _, b := range builtins {
		if err := reg.Register(b.id, b.graph, b.desc); err != nil {
			return fmt.Errorf("register %s: %w", b.id, err)
		}
	}
	return nil
}
