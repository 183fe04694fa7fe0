package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/ChamsBouzaiene/causette/internal/chat"
)

func TestNewClientFromEnvDefaultsToDeepSeek(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("DEEPSEEK_API_KEY", "test-key")
	t.Setenv("DEEPSEEK_MODEL", "")

	client, model, err := NewClientFromEnv()
	if err != nil {
		t.Fatalf("NewClientFromEnv failed: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client")
	}
	if model != "deepseek-chat" {
		t.Errorf("expected default model deepseek-chat, got %q", model)
	}
}

func TestNewClientFromEnvMissingKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	if _, _, err := NewClientFromEnv(); err == nil {
		t.Fatal("expected error when OPENAI_API_KEY is unset")
	}
}

func TestNewClientFromEnvUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "llamacpp")

	if _, _, err := NewClientFromEnv(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	client, err := NewOpenAIClient("key", "deepseek-chat", "")
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}
	_, err = client.Complete(context.Background(), chat.Request{})
	if !errors.Is(err, chat.ErrEmptyMessages) {
		t.Errorf("expected ErrEmptyMessages, got %v", err)
	}

	ac, err := NewAnthropicClient("key", "claude-3-5-haiku-latest")
	if err != nil {
		t.Fatalf("NewAnthropicClient failed: %v", err)
	}
	_, err = ac.Complete(context.Background(), chat.Request{})
	if !errors.Is(err, chat.ErrEmptyMessages) {
		t.Errorf("expected ErrEmptyMessages, got %v", err)
	}
}

func TestCompleteRejectsInvalidRole(t *testing.T) {
	client, err := NewOpenAIClient("key", "deepseek-chat", "")
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}
	_, err = client.Complete(context.Background(), chat.Request{
		Messages: []chat.Turn{{Role: "robot", Content: "beep"}},
	})
	if err == nil {
		t.Fatal("expected validation error for unknown role")
	}
}
