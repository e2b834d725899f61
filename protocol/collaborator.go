package protocol

import (
	"context"
	"fmt"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// RequestContext carries everything a collaborator needs for one hop: the
// raw user message, the requester identity, and the evidence accumulated
// by earlier hops in the chain.
type RequestContext struct {
	SessionID string            `json:"session_id"`
	PatientID string            `json:"patient_id,omitempty"`
	Message   string            `json:"message"`
	Evidence  []types.Assertion `json:"evidence,omitempty"`
}

// Collaborator is one decision unit in the routing chain. Implementations
// may run in-process or behind a transport; the routing engine does not
// care which.
type Collaborator interface {
	Name() types.AgentName
	Handle(ctx context.Context, req *RequestContext) (*types.AgentOutput, error)
}

// Registry maps collaborator names to handles. Construction rejects any
// name outside the closed set, so routing never has to dispatch on a
// free-text name at runtime.
type Registry struct {
	collaborators map[types.AgentName]Collaborator
}

// NewRegistry builds a registry from the given collaborators.
func NewRegistry(collaborators ...Collaborator) (*Registry, error) {
	r := &Registry{collaborators: make(map[types.AgentName]Collaborator)}
	for _, c := range collaborators {
		name := c.Name()
		if !types.IsKnownAgent(name) {
			return nil, fmt.Errorf("unknown collaborator name %q", name)
		}
		if _, exists := r.collaborators[name]; exists {
			return nil, fmt.Errorf("duplicate collaborator %q", name)
		}
		r.collaborators[name] = c
	}
	return r, nil
}

// Get returns the collaborator registered under name.
func (r *Registry) Get(name types.AgentName) (Collaborator, bool) {
	c, ok := r.collaborators[name]
	return c, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name types.AgentName) bool {
	_, ok := r.collaborators[name]
	return ok
}
