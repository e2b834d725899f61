// Package llm provides a small pluggable chat client used by the intent
// and response-synthesis paths. Every caller must keep a rule-based
// fallback: the orchestration core works with the client disabled.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

var ErrLLMDisabled = errors.New("llm client disabled (missing key)")

// Client is the minimal interface used by the agents.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// GoogleAIClient implements Client over the Gemini API.
type GoogleAIClient struct {
	Model string
	llm   *googleai.GoogleAI
}

// NewFromEnv creates a Gemini-backed client.
// Key precedence: GEMINI_API_KEY > GOOGLE_API_KEY. Returns ErrLLMDisabled
// when no key is configured so callers can fall back to rule-based logic.
func NewFromEnv(ctx context.Context) (Client, error) {
	key := firstNonEmpty(
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("GOOGLE_API_KEY"),
	)
	if key == "" {
		return nil, ErrLLMDisabled
	}

	model := firstNonEmpty(os.Getenv("LLM_MODEL"))
	if model == "" {
		model = "gemini-1.5-flash"
	}

	llmClient, err := googleai.New(ctx,
		googleai.WithAPIKey(key),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GoogleAIClient{Model: model, llm: llmClient}, nil
}

// Chat sends a single-turn prompt and returns the trimmed response text.
func (c *GoogleAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	prompt := user
	if strings.TrimSpace(system) != "" {
		prompt = fmt.Sprintf("%s\n\n%s", system, user)
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(0.2))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
