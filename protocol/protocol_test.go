package protocol

import (
	"context"
	"strings"
	"testing"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

type staticCollaborator struct{ name types.AgentName }

func (s staticCollaborator) Name() types.AgentName { return s.name }
func (s staticCollaborator) Handle(ctx context.Context, req *RequestContext) (*types.AgentOutput, error) {
	return &types.AgentOutput{Agent: s.name, Decision: types.DecisionApproved, Reason: "ok"}, nil
}

func TestNewRegistryRejectsUnknownName(t *testing.T) {
	_, err := NewRegistry(staticCollaborator{name: types.AgentName("billing")})
	if err == nil {
		t.Fatal("expected construction to fail for an unknown name")
	}
	if !strings.Contains(err.Error(), "unknown collaborator") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		staticCollaborator{name: types.AgentInventory},
		staticCollaborator{name: types.AgentInventory},
	)
	if err == nil {
		t.Fatal("expected construction to fail on a duplicate name")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	registry, err := NewRegistry(staticCollaborator{name: types.AgentPolicy})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if c, ok := registry.Get(types.AgentPolicy); !ok || c.Name() != types.AgentPolicy {
		t.Error("expected the registered collaborator back")
	}
	if registry.Has(types.AgentRefill) {
		t.Error("did not expect an unregistered name to resolve")
	}
}

func TestDecodeEnvelopeRejectsInvalidPayload(t *testing.T) {
	validator, err := NewEnvelopeValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	cases := []struct {
		name    string
		payload string
	}{
		{"missing decision", `{"agent":"inventory","reason":"ok"}`},
		{"agent outside the closed set", `{"agent":"billing","decision":"APPROVED","reason":"ok"}`},
		{"unknown decision", `{"agent":"policy","decision":"MAYBE","reason":"ok"}`},
		{"next agent outside the closed set", `{"agent":"policy","decision":"APPROVED","reason":"ok","next_agent":"billing"}`},
		{"not an object", `["inventory"]`},
	}
	for _, tc := range cases {
		if _, err := validator.DecodeEnvelope([]byte(tc.payload)); err == nil {
			t.Errorf("%s: expected decoding to fail", tc.name)
		}
	}
}

func TestDecodeEnvelopeAcceptsValidPayload(t *testing.T) {
	validator, err := NewEnvelopeValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	payload := `{"agent":"inventory","decision":"APPROVED","reason":"in stock","evidence":["medicine_name=Paracetamol"],"next_agent":"policy"}`
	output, err := validator.DecodeEnvelope([]byte(payload))
	if err != nil {
		t.Fatalf("expected a valid envelope, got %v", err)
	}
	if output.Agent != types.AgentInventory || output.NextAgent != types.AgentPolicy {
		t.Errorf("unexpected routing fields: %+v", output)
	}
	if len(output.Evidence) != 1 || output.Evidence[0].Key != "medicine_name" || output.Evidence[0].Value != "Paracetamol" {
		t.Errorf("unexpected evidence: %+v", output.Evidence)
	}
}
