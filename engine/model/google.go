package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleModel implements ChatModel for Gemini.
type GoogleModel struct {
	apiKey    string
	modelName string
}

func NewGoogleModel(apiKey, modelName string) *GoogleModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GoogleModel{apiKey: apiKey, modelName: modelName}
}

func (m *GoogleModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	if m.apiKey == "" {
		return ChatOut{}, errors.New("google: api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return ChatOut{}, fmt.Errorf("google: client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(m.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertGoogleTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertGoogleParts(messages)...)
	if err != nil {
		return ChatOut{}, fmt.Errorf("google: generate: %w", err)
	}

	out := convertGoogleResponse(resp)
	if out.Text == "" && len(out.ToolCalls) == 0 && blockedBySafety(resp) {
		return ChatOut{}, &SafetyFilterError{reason: blockReason(resp)}
	}
	return out, nil
}

func convertGoogleParts(messages []Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

func convertGoogleTools(tools []ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertGoogleSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertGoogleSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}
	if props, ok := schema["properties"].(map[string]any); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]any)
			if !ok {
				continue
			}
			prop := &genai.Schema{}
			if t, ok := propMap["type"].(string); ok {
				prop.Type = convertGoogleType(t)
			}
			if d, ok := propMap["description"].(string); ok {
				prop.Description = d
			}
			properties[key] = prop
		}
		result.Properties = properties
	}
	if required, ok := schema["required"].([]any); ok {
		for _, v := range required {
			if s, ok := v.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	return result
}

func convertGoogleType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertGoogleResponse(resp *genai.GenerateContentResponse) ChatOut {
	var out ChatOut
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out
}

func blockedBySafety(resp *genai.GenerateContentResponse) bool {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != 0 {
		return true
	}
	return len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil {
		return resp.PromptFeedback.BlockReason.String()
	}
	return "SAFETY"
}

// SafetyFilterError reports that Gemini's safety filters blocked the request.
type SafetyFilterError struct {
	reason string
}

func (e *SafetyFilterError) Error() string {
	return "google: content blocked by safety filter: " + e.reason
}
