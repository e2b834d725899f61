package llm

import (
	"context"
	"os"
	"testing"
)

func TestNewFromEnv_MissingKey(t *testing.T) {
	originalGemini := os.Getenv("GEMINI_API_KEY")
	originalGoogle := os.Getenv("GOOGLE_API_KEY")
	defer func() {
		os.Setenv("GEMINI_API_KEY", originalGemini)
		os.Setenv("GOOGLE_API_KEY", originalGoogle)
	}()

	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("GOOGLE_API_KEY")

	_, err := NewFromEnv(context.Background())
	if err != ErrLLMDisabled {
		t.Errorf("Expected ErrLLMDisabled, got: %v", err)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		inputs   []string
		expected string
	}{
		{[]string{"a", "b", "c"}, "a"},
		{[]string{"", "b", "c"}, "b"},
		{[]string{"", "", "c"}, "c"},
		{[]string{"", "", ""}, ""},
		{[]string{" a ", "b"}, "a"},
	}

	for _, tt := range tests {
		result := firstNonEmpty(tt.inputs...)
		if result != tt.expected {
			t.Errorf("firstNonEmpty(%v) = %q, expected %q", tt.inputs, result, tt.expected)
		}
	}
}

// Integration test (requires an actual API key to run)
func TestIntegration_Gemini(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		t.Skip("Skipping integration test: no Gemini API key set")
	}

	client, err := NewFromEnv(context.Background())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	response, err := client.Chat(context.Background(), "You are a test assistant.", "Say 'test' once.")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if response == "" {
		t.Error("Expected non-empty response")
	}
}
