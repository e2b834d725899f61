package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/client"
	a2a "trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/server"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// A2ACollaborator talks to a collaborator agent over the A2A protocol.
// The RequestContext travels as a JSON text part and the reply text part
// carries the AgentOutput envelope.
type A2ACollaborator struct {
	name      types.AgentName
	client    *client.A2AClient
	timeout   time.Duration
	validator *EnvelopeValidator
}

// NewA2ACollaborator creates an A2A client for the collaborator at agentURL.
func NewA2ACollaborator(name types.AgentName, agentURL string, timeout time.Duration) (*A2ACollaborator, error) {
	if !types.IsKnownAgent(name) {
		return nil, fmt.Errorf("unknown collaborator name %q", name)
	}
	a2aClient, err := client.NewA2AClient(agentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create A2A client for %s: %w", name, err)
	}
	validator, err := NewEnvelopeValidator()
	if err != nil {
		return nil, err
	}
	return &A2ACollaborator{
		name:      name,
		client:    a2aClient,
		timeout:   timeout,
		validator: validator,
	}, nil
}

// Name returns the collaborator's routing name.
func (a *A2ACollaborator) Name() types.AgentName {
	return a.name
}

// Handle forwards the request over A2A and decodes the validated envelope.
func (a *A2ACollaborator) Handle(ctx context.Context, reqCtx *RequestContext) (*types.AgentOutput, error) {
	body, err := json.Marshal(reqCtx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Create the message to send
	message := a2a.NewMessage(
		a2a.MessageRoleUser,
		[]a2a.Part{a2a.NewTextPart(string(body))},
	)

	params := a2a.SendMessageParams{
		Message: message,
	}
	result, err := a.client.SendMessage(ctx, params)
	if err != nil {
		return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
			fmt.Sprintf("collaborator %s unreachable", a.name)).WithAgent(a.name).WithCause(err)
	}

	// Handle the response based on its type
	var text string
	switch result.Result.GetKind() {
	case a2a.KindMessage:
		msg := result.Result.(*a2a.Message)
		text = extractText(*msg)
	case a2a.KindTask:
		task := result.Result.(*a2a.Task)
		if task.Status.Message == nil {
			return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
				fmt.Sprintf("no response message from %s", a.name)).WithAgent(a.name)
		}
		text = extractText(*task.Status.Message)
	default:
		return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
			fmt.Sprintf("unexpected response type from %s: %T", a.name, result.Result)).WithAgent(a.name)
	}

	output, err := a.validator.DecodeEnvelope([]byte(text))
	if err != nil {
		return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
			fmt.Sprintf("collaborator %s returned an invalid envelope", a.name)).WithAgent(a.name).WithCause(err)
	}
	return output, nil
}

// collaboratorProcessor adapts a local Collaborator to the taskmanager
// message processor interface so it can be served over A2A.
type collaboratorProcessor struct {
	collaborator Collaborator
}

// ProcessMessage implements the taskmanager.MessageProcessor interface
func (p *collaboratorProcessor) ProcessMessage(
	ctx context.Context,
	message a2a.Message,
	options taskmanager.ProcessOptions,
	handle taskmanager.TaskHandler,
) (*taskmanager.MessageProcessingResult, error) {
	raw := extractText(message)
	if raw == "" {
		errorMessage := a2a.NewMessage(
			a2a.MessageRoleAgent,
			[]a2a.Part{a2a.NewTextPart("input message must contain text.")},
		)
		return &taskmanager.MessageProcessingResult{
			Result: &errorMessage,
		}, nil
	}

	var reqCtx RequestContext
	if err := json.Unmarshal([]byte(raw), &reqCtx); err != nil {
		// Tolerate bare text for manual testing.
		reqCtx = RequestContext{Message: raw}
	}
	if reqCtx.SessionID == "" {
		reqCtx.SessionID = handle.GetContextID()
	}

	output, err := p.collaborator.Handle(ctx, &reqCtx)
	if err != nil {
		errorMessage := a2a.NewMessage(
			a2a.MessageRoleAgent,
			[]a2a.Part{a2a.NewTextPart(fmt.Sprintf("failed to process request: %v", err))},
		)
		return &taskmanager.MessageProcessingResult{
			Result: &errorMessage,
		}, nil
	}

	body, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}

	responseMessage := a2a.NewMessage(
		a2a.MessageRoleAgent,
		[]a2a.Part{a2a.NewTextPart(string(body))},
	)
	return &taskmanager.MessageProcessingResult{
		Result: &responseMessage,
	}, nil
}

// extractText extracts the text content from a message
func extractText(message a2a.Message) string {
	var result strings.Builder
	for _, part := range message.Parts {
		if textPart, ok := part.(*a2a.TextPart); ok {
			result.WriteString(textPart.Text)
		}
	}
	return result.String()
}

// Helper functions
func stringPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

// AgentCardFor returns the A2A metadata card for a collaborator.
func AgentCardFor(c Collaborator, url string) server.AgentCard {
	name := string(c.Name())
	return server.AgentCard{
		Name:        name,
		Description: fmt.Sprintf("Pharmacy %s collaborator agent.", name),
		URL:         url,
		Version:     "1.0.0",
		Capabilities: server.AgentCapabilities{
			Streaming:              boolPtr(false),
			PushNotifications:      boolPtr(false),
			StateTransitionHistory: boolPtr(true),
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []server.AgentSkill{
			{
				ID:          name,
				Name:        name,
				Description: stringPtr(fmt.Sprintf("Handles %s decisions for pharmacy orders.", name)),
				Tags:        []string{"pharmacy", name},
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
		},
	}
}

// NewA2AServer wraps a local collaborator in an A2A server ready to start.
func NewA2AServer(c Collaborator, url string) (*server.A2AServer, error) {
	processor := &collaboratorProcessor{collaborator: c}

	taskManager, err := taskmanager.NewMemoryTaskManager(processor)
	if err != nil {
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}

	return server.NewA2AServer(AgentCardFor(c, url), taskManager)
}
