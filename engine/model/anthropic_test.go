package model

import (
	"context"
	"testing"
)

func TestAnthropicModel_MissingAPIKey(t *testing.T) {
	m := NewAnthropicModel("", "")
	_, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected an error when no api key is configured")
	}
}

func TestAnthropicModel_CancelledContextShortCircuits(t *testing.T) {
	m := NewAnthropicModel("key", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Chat(ctx, nil, nil)
	if err == nil {
		t.Fatal("expected the cancelled context to short-circuit before any request")
	}
}

func TestNewAnthropicModel_DefaultsModelName(t *testing.T) {
	m := NewAnthropicModel("key", "")
	if m.modelName == "" {
		t.Fatal("expected a default model name")
	}
}

func TestExtractSystemPrompt(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "be concise"},
		{Role: RoleSystem, Content: "answer in English"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}
	system, convo := extractSystemPrompt(messages)
	if system != "be concise\n\nanswer in English" {
		t.Errorf("unexpected merged system prompt: %q", system)
	}
	if len(convo) != 2 || convo[0].Role != RoleUser || convo[1].Role != RoleAssistant {
		t.Errorf("expected system messages stripped from the conversation, got %+v", convo)
	}
}

func TestExtractSystemPrompt_NoSystemMessages(t *testing.T) {
	messages := []Message{{Role: RoleUser, Content: "hi"}}
	system, convo := extractSystemPrompt(messages)
	if system != "" {
		t.Errorf("expected an empty system prompt, got %q", system)
	}
	if len(convo) != 1 {
		t.Errorf("expected the conversation unchanged, got %+v", convo)
	}
}
