// Package agent provides the public types for building and serving agents
// with Agentserve.
//
// This package exports the core Graph, Message, and StreamEvent types that
// external projects need to build custom agents or consume the service's
// output, plus the Registry that maps agent identifiers to runnable graphs.
//
// # Basic Usage
//
// To create a custom agent, implement the Graph interface:
//
//	type EchoGraph struct{}
//
//	func (EchoGraph) Invoke(ctx context.Context, in agent.RunInput) (*agent.RunResult, error) {
//	    reply := agent.NewAssistantMessage("you said: " + in.Input.Content)
//	    return &agent.RunResult{Message: &reply}, nil
//	}
//
//	func (EchoGraph) Stream(ctx context.Context, in agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error) {
//	    // Emit token events as text is produced, then return the final reply.
//	    return EchoGraph{}.Invoke(ctx, in)
//	}
//
// Register the graph so the service can route to it:
//
//	registry := agent.NewRegistry()
//	err := registry.Register("echo", EchoGraph{}, agent.Descriptor{
//	    Description: "Echoes the user's input.",
//	})
//
// # Messages and events
//
// Messages are the unit of conversation history:
//
//	msg := agent.NewUserMessage("hello").
//	    WithMetadata("source", "api")
//
// During streaming, a run produces an ordered sequence of StreamEvents:
// zero or more token and custom_update events, the terminal assistant
// message event, and exactly one end (or error) event.
package agent
