package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// HTTPCollaborator talks to a collaborator agent over plain HTTP. The
// remote side exposes POST {endpoint}/process accepting a RequestContext
// and returning an AgentOutput envelope.
type HTTPCollaborator struct {
	name      types.AgentName
	endpoint  string
	timeout   time.Duration
	client    *http.Client
	validator *EnvelopeValidator
}

// NewHTTPCollaborator creates a client for the collaborator at endpoint.
func NewHTTPCollaborator(name types.AgentName, endpoint string, timeout time.Duration) (*HTTPCollaborator, error) {
	if !types.IsKnownAgent(name) {
		return nil, fmt.Errorf("unknown collaborator name %q", name)
	}
	validator, err := NewEnvelopeValidator()
	if err != nil {
		return nil, err
	}
	return &HTTPCollaborator{
		name:      name,
		endpoint:  strings.TrimRight(endpoint, "/"),
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
		validator: validator,
	}, nil
}

// Name returns the collaborator's routing name.
func (h *HTTPCollaborator) Name() types.AgentName {
	return h.name
}

// Handle forwards the request and decodes the validated envelope.
func (h *HTTPCollaborator) Handle(ctx context.Context, reqCtx *RequestContext) (*types.AgentOutput, error) {
	body, err := json.Marshal(reqCtx)
	if err != nil {
		return nil, err
	}
	url := h.endpoint + "/process"

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
			fmt.Sprintf("collaborator %s unreachable", h.name)).WithAgent(h.name).WithCause(err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
			fmt.Sprintf("failed to read response from %s", h.name)).WithAgent(h.name).WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
			fmt.Sprintf("collaborator %s returned status %d", h.name, resp.StatusCode)).WithAgent(h.name)
	}

	output, err := h.validator.DecodeEnvelope(respBytes)
	if err != nil {
		return nil, types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable,
			fmt.Sprintf("collaborator %s returned an invalid envelope", h.name)).WithAgent(h.name).WithCause(err)
	}
	return output, nil
}

// NewProcessHandler exposes a local collaborator over HTTP so it can be
// run as its own process. The handler accepts POST with a RequestContext
// body and writes the AgentOutput envelope.
func NewProcessHandler(c Collaborator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var reqCtx RequestContext
		if err := json.NewDecoder(r.Body).Decode(&reqCtx); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		output, err := c.Handle(r.Context(), &reqCtx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(output)
	}
}

// NewHealthHandler reports liveness for a collaborator process.
func NewHealthHandler(name types.AgentName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"agent":  string(name),
		})
	}
}
