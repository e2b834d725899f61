package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// EnvelopeValidator checks collaborator output against the shared envelope
// schema. A response that fails validation is treated the same as a
// transport failure: the chain truncates rather than routing on garbage.
type EnvelopeValidator struct {
	schema *gojsonschema.Schema
}

// NewEnvelopeValidator creates a new envelope validator
func NewEnvelopeValidator() (*EnvelopeValidator, error) {
	schemaLoader := gojsonschema.NewBytesLoader([]byte(envelopeSchema))
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}

	return &EnvelopeValidator{
		schema: schema,
	}, nil
}

// ValidateBytes validates a raw JSON envelope against the schema.
func (ev *EnvelopeValidator) ValidateBytes(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := ev.schema.Validate(documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, err := range result.Errors() {
			errors = append(errors, fmt.Sprintf("- %s", err))
		}
		return fmt.Errorf("envelope validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

// Validate validates an already decoded envelope.
func (ev *EnvelopeValidator) Validate(output *types.AgentOutput) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return ev.ValidateBytes(data)
}

// DecodeEnvelope validates raw collaborator output and decodes it. This is
// the single point where wire evidence strings become typed assertions.
func (ev *EnvelopeValidator) DecodeEnvelope(data []byte) (*types.AgentOutput, error) {
	if err := ev.ValidateBytes(data); err != nil {
		return nil, err
	}
	var output types.AgentOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &output, nil
}

// Envelope schema shared by all collaborators
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Collaborator Output Envelope",
  "type": "object",
  "required": ["agent", "decision", "reason"],
  "properties": {
    "agent": {
      "type": "string",
      "enum": ["intent", "inventory", "policy", "fulfillment", "refill"]
    },
    "decision": {
      "type": "string",
      "enum": ["APPROVED", "REJECTED", "NEEDS_INFO", "SCHEDULED"]
    },
    "reason": {
      "type": "string"
    },
    "evidence": {
      "type": "array",
      "items": {
        "type": "string"
      }
    },
    "message": {
      "type": "string"
    },
    "next_agent": {
      "type": "string",
      "enum": ["intent", "inventory", "policy", "fulfillment", "refill"]
    }
  }
}`
