package agent

import "sync"

// Registry maps agent identifiers to runnable graphs and their metadata.
// Registration happens during process startup; afterwards the registry is
// read-only, so lookups are contention-free in practice. The mutex guards
// the startup phase only.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	order   []string
}

type registration struct {
	graph Graph
	desc  Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a graph under agentID. It fails with a DUPLICATE_AGENT
// error when the identifier is already taken.
func (r *Registry) Register(agentID string, graph Graph, desc Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[agentID]; exists {
		return NewError(CodeDuplicateAgent, "agent already registered").
			WithRun("", agentID, "")
	}

	desc.AgentID = agentID
	r.entries[agentID] = registration{graph: graph, desc: desc}
	r.order = append(r.order, agentID)
	return nil
}

// Get returns the graph registered under agentID, failing with an
// UNKNOWN_AGENT error when absent.
func (r *Registry) Get(agentID string) (Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[agentID]
	if !ok {
		return nil, NewError(CodeUnknownAgent, "no such agent").
			WithRun("", agentID, "")
	}
	return reg.graph, nil
}

// Descriptor returns the metadata registered under agentID.
func (r *Registry) Descriptor(agentID string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[agentID]
	if !ok {
		return Descriptor{}, NewError(CodeUnknownAgent, "no such agent").
			WithRun("", agentID, "")
	}
	return reg.desc, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		descs = append(descs, r.entries[id].desc)
	}
	return descs
}
