// Package model provides LLM chat adapters for the agent block.
package model

import "context"

// ChatModel abstracts a single LLM provider behind one call shape so the
// agent block handler never branches on provider.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a provider's response: text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	Name  string
	Input map[string]any
}
