package llm

import (
	"strings"
	"testing"

	"github.com/lazypower/synapse/internal/config"
)

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key", Model: "claude-haiku-4-5-20251001"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", client)
	}
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientOpenAI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "openai", OpenAIKey: "test-key"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*OpenAI); !ok {
		t.Errorf("expected *OpenAI, got %T", client)
	}
}

func TestNewClientOllama(t *testing.T) {
	cfg := config.LLMConfig{Provider: "ollama", OllamaModel: "llama3.2"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Errorf("expected *Ollama, got %T", client)
	}
}

func TestNewClientUnknown(t *testing.T) {
	cfg := config.LLMConfig{Provider: "gpt"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestExtractionPromptContainsWindow(t *testing.T) {
	prompt := ExtractionPrompt("user: Sarah runs the Northwind rewrite\n")
	if !strings.Contains(prompt, "Northwind") {
		t.Error("prompt missing the conversation window")
	}
	if !strings.Contains(prompt, `"entities"`) || !strings.Contains(prompt, `"relations"`) {
		t.Error("prompt missing the JSON contract")
	}
}

func TestSummaryPromptContainsTranscript(t *testing.T) {
	prompt := SummaryPrompt("user: let's ship it\n")
	if !strings.Contains(prompt, "ship it") {
		t.Error("prompt missing the transcript")
	}
}
