package types

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// ChatRequest represents an incoming chat message from the frontend
type ChatRequest struct {
	SessionID string           `json:"sessionId"`
	Message   string           `json:"message"`
	PatientID string           `json:"patientId,omitempty"`
	Metadata  *RequestMetadata `json:"metadata,omitempty"`
}

// RequestMetadata contains metadata for the request
type RequestMetadata struct {
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
}

// ChatResponse represents the response to a chat message
type ChatResponse struct {
	Response     string             `json:"response"`
	UICardType   string             `json:"uiCardType"`
	Preview      *OrderPreview      `json:"preview,omitempty"`
	Confirmation *OrderConfirmation `json:"confirmation,omitempty"`
	AgentChain   []AgentName        `json:"agentChain,omitempty"`
	FinalAction  string             `json:"finalAction,omitempty"`
	Logs         []AgentLog         `json:"logs,omitempty"`
	Metadata     *ResponseMetadata  `json:"metadata,omitempty"`
	Error        *ErrorDetail       `json:"error,omitempty"`
}

// ResponseMetadata contains metadata for the response
type ResponseMetadata struct {
	RequestID      string  `json:"requestId"`
	ProcessingTime float64 `json:"processingTime"` // in milliseconds
	Timestamp      string  `json:"timestamp"`
}

// PrescriptionUploadRequest represents a prescription upload callback
type PrescriptionUploadRequest struct {
	SessionID string `json:"sessionId"`
	Verified  bool   `json:"verified"`
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"` // "log", "error", "status", "heartbeat", "connection"
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"messageId,omitempty"`
}

// AgentLog represents a log entry from an agent
type AgentLog struct {
	Type      string `json:"type"` // "routing", "inventory", "policy", "fulfillment", "refill", "error"
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"messageId,omitempty"`
	Level     string `json:"level,omitempty"` // "info", "warning", "error", "debug"
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

// ConnectionStatus represents WebSocket connection status
type ConnectionStatus struct {
	Connected    bool      `json:"connected"`
	ClientID     string    `json:"clientId"`
	ConnectedAt  time.Time `json:"connectedAt,omitempty"`
	LastPing     time.Time `json:"lastPing,omitempty"`
	MessageCount int       `json:"messageCount"`
}

// HealthCheckResponse represents the health status of the service
type HealthCheckResponse struct {
	Status    string                   `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp string                   `json:"timestamp"`
	Version   string                   `json:"version"`
	Services  map[string]ServiceStatus `json:"services"`
}

// ServiceStatus represents the status of a dependent service
type ServiceStatus struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`            // "up", "down", "degraded"
	Latency   float64 `json:"latency,omitempty"` // in milliseconds
	LastCheck string  `json:"lastCheck"`
	Error     string  `json:"error,omitempty"`
}

// Constants for message types
const (
	// WebSocket message types
	WSTypeLog        = "log"
	WSTypeError      = "error"
	WSTypeStatus     = "status"
	WSTypeHeartbeat  = "heartbeat"
	WSTypeConnection = "connection"

	// Agent log types
	LogTypeRouting     = "routing"
	LogTypeIntent      = "intent"
	LogTypeInventory   = "inventory"
	LogTypePolicy      = "policy"
	LogTypeFulfillment = "fulfillment"
	LogTypeRefill      = "refill"
	LogTypeError       = "error"

	// Log levels
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
	LogLevelDebug   = "debug"

	// Service status
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUp        = "up"
	StatusDown      = "down"
)

// UI card types returned with a chat response
const (
	UICardText               = "text"
	UICardOrderPreview       = "order_preview"
	UICardOrderConfirmation  = "order_confirmation"
	UICardPrescriptionUpload = "prescription_upload"
)

// Final actions reported by the routing chain
const (
	ActionNone               = ""
	ActionPreviewCreated     = "preview_created"
	ActionOrderConfirmed     = "order_confirmed"
	ActionPrescriptionNeeded = "prescription_needed"
	ActionRefillScheduled    = "refill_scheduled"
)

// Helper functions

// NewWebSocketMessage creates a new WebSocket message
func NewWebSocketMessage(msgType string, payload interface{}) *WebSocketMessage {
	return &WebSocketMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: generateMessageID(),
	}
}

// NewAgentLog creates a new agent log entry
func NewAgentLog(logType, from, content string) *AgentLog {
	return &AgentLog{
		Type:      logType,
		From:      from,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: generateMessageID(),
		Level:     LogLevelInfo,
	}
}

// ToJSON converts the message to JSON
func (m *WebSocketMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToJSON converts the log to JSON
func (l *AgentLog) ToJSON() ([]byte, error) {
	return json.Marshal(l)
}

// generateMessageID generates a unique message ID
func generateMessageID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), generateRandomString(8))
}

// generateRandomString generates a random string of specified length
func generateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
