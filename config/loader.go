package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CollaboratorConfig represents configuration for a single collaborator agent
type CollaboratorConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Endpoint    string `yaml:"endpoint"`
	Transport   string `yaml:"transport"` // "http" or "a2a"
	TimeoutSec  int    `yaml:"timeout_seconds"`
}

// Config represents the main collaborator configuration structure
type Config struct {
	Collaborators map[string]CollaboratorConfig `yaml:"collaborators"`
}

// EnvConfig holds environment variables
type EnvConfig struct {
	// API Keys
	GoogleAPIKey string

	// Server Ports
	OrchestratorPort     int
	IntentAgentPort      int
	InventoryAgentPort   int
	PolicyAgentPort      int
	FulfillmentAgentPort int
	RefillAgentPort      int
	WSPort               int

	// Routing
	HopLimit            int
	CollaboratorTimeout time.Duration
	RetryAttempts       int

	// Session expiry
	SessionTTL time.Duration

	// Pricing
	TaxRate       float64
	DeliveryFee   float64
	FallbackPrice float64
}

// LoadEnv loads environment variables
func LoadEnv() (*EnvConfig, error) {
	// Try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	cfg := &EnvConfig{
		GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
	}

	// Parse integer values with defaults
	cfg.OrchestratorPort = getEnvInt("ORCHESTRATOR_PORT", 8080)
	cfg.IntentAgentPort = getEnvInt("INTENT_AGENT_PORT", 8081)
	cfg.InventoryAgentPort = getEnvInt("INVENTORY_AGENT_PORT", 8082)
	cfg.PolicyAgentPort = getEnvInt("POLICY_AGENT_PORT", 8083)
	cfg.FulfillmentAgentPort = getEnvInt("FULFILLMENT_AGENT_PORT", 8084)
	cfg.RefillAgentPort = getEnvInt("REFILL_AGENT_PORT", 8087)
	cfg.WSPort = getEnvInt("WS_PORT", 8085)

	cfg.HopLimit = getEnvInt("HOP_LIMIT", 5)
	cfg.CollaboratorTimeout = time.Duration(getEnvInt("COLLABORATOR_TIMEOUT_SECONDS", 30)) * time.Second
	cfg.RetryAttempts = getEnvInt("RETRY_ATTEMPTS", 3)
	cfg.SessionTTL = time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute

	cfg.TaxRate = getEnvFloat("TAX_RATE", 0.05)
	cfg.DeliveryFee = getEnvFloat("DELIVERY_FEE", 2.00)
	cfg.FallbackPrice = getEnvFloat("FALLBACK_UNIT_PRICE", 10.00)

	return cfg, nil
}

// LoadCollaboratorConfig loads the collaborator configuration from YAML
func LoadCollaboratorConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "configs/collaborators.yaml"
	}

	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Replace environment variables in the YAML
	configStr := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(configStr), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// GetCollaborator finds a collaborator configuration by name
func (c *Config) GetCollaborator(name string) (*CollaboratorConfig, error) {
	if col, ok := c.Collaborators[name]; ok {
		return &col, nil
	}
	return nil, fmt.Errorf("collaborator %s not found", name)
}

// Timeout returns the configured per-call timeout for a collaborator,
// falling back to def when unset.
func (c *CollaboratorConfig) Timeout(def time.Duration) time.Duration {
	if c.TimeoutSec > 0 {
		return time.Duration(c.TimeoutSec) * time.Second
	}
	return def
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func expandEnvVars(s string) string {
	// Replace ${VAR_NAME} with environment variable values
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
