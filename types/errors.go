package types

import (
	"fmt"
	"time"
)

// OrchestrationError is an error raised inside the routing core. The code
// identifies the failure class so callers can map it to a user response
// without string matching.
type OrchestrationError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	SessionID string            `json:"sessionId,omitempty"`
	Agent     AgentName         `json:"agent,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
	cause     error
}

// Error implements the error interface
func (e *OrchestrationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("orchestration error [%s]: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("orchestration error [%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *OrchestrationError) Unwrap() error {
	return e.cause
}

// NewOrchestrationError creates a new orchestration error
func NewOrchestrationError(code, message string) *OrchestrationError {
	return &OrchestrationError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithSession attaches the session id the error occurred in.
func (e *OrchestrationError) WithSession(sessionID string) *OrchestrationError {
	e.SessionID = sessionID
	return e
}

// WithAgent attaches the collaborator the error occurred at.
func (e *OrchestrationError) WithAgent(agent AgentName) *OrchestrationError {
	e.Agent = agent
	return e
}

// WithCause attaches the underlying error.
func (e *OrchestrationError) WithCause(cause error) *OrchestrationError {
	e.cause = cause
	return e
}

// Orchestration error codes
const (
	ErrCodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	ErrCodeUnrecognizedRouting     = "UNRECOGNIZED_ROUTING"
	ErrCodeEvidenceDecode          = "EVIDENCE_DECODE_ERROR"
	ErrCodeNoActiveOrder           = "NO_ACTIVE_ORDER"
	ErrCodeNothingToResume         = "NOTHING_TO_RESUME"
)
