// Package agents provides the built-in graphs shipped with the server:
// a plain chatbot, a tool-calling assistant, and a background-task agent
// that demonstrates custom progress events. RegisterBuiltins wires all of
// them into a registry against a single chat model.
package agents
