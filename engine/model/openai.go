package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIModel implements ChatModel for OpenAI chat completions, retrying
// transient failures (timeouts, 5xx, rate limits) with linear backoff.
type OpenAIModel struct {
	apiKey     string
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

func NewOpenAIModel(apiKey, modelName string) *OpenAIModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &OpenAIModel{apiKey: apiKey, modelName: modelName, maxRetries: 3, retryDelay: time.Second}
}

func (m *OpenAIModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	if m.apiKey == "" {
		return ChatOut{}, errors.New("openai: api key is required")
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.complete(ctx, messages, tools)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransientOpenAIError(err) || attempt >= m.maxRetries {
			break
		}
		delay := m.retryDelay * time.Duration(attempt+1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ChatOut{}, ctx.Err()
		}
	}
	return ChatOut{}, fmt.Errorf("openai: failed after %d retries: %w", m.maxRetries, lastErr)
}

func (m *OpenAIModel) complete(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	client := openaisdk.NewClient(option.WithAPIKey(m.apiKey))
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(m.modelName),
		Messages: convertOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertOpenAITools(tools)
	}
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatOut{}, err
	}
	return convertOpenAIResponse(resp), nil
}

func isTransientOpenAIError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "rate limit", "429", "503", "502", "500"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func convertOpenAIMessages(messages []Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out[i] = openaisdk.SystemMessage(msg.Content)
		case RoleAssistant:
			out[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			out[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return out
}

func convertOpenAITools(tools []ToolSpec) []openaisdk.ChatCompletionToolParam {
	out := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		out[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Schema),
			},
		}
	}
	return out
}

func convertOpenAIResponse(resp *openaisdk.ChatCompletion) ChatOut {
	var out ChatOut
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Function.Name, Input: parseOpenAIToolInput(tc.Function.Arguments)})
	}
	return out
}

func parseOpenAIToolInput(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return map[string]any{"_raw": raw}
	}
	return parsed
}
