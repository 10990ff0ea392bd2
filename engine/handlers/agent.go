package handlers

import (
	"context"
	"sync"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/model"
)

// AgentCredentials holds the provider API keys, fixed when NewAgentModels is
// called; agent blocks do not look keys up from wctx.Secrets.
type AgentCredentials struct {
	AnthropicKey string
	OpenAIKey    string
	GoogleKey    string
}

// AgentModels caches one ChatModel per (provider, model name) so agent
// blocks sharing a provider within a run don't rebuild SDK clients.
type AgentModels struct {
	mu     sync.Mutex
	cached map[string]model.ChatModel
	creds  AgentCredentials
}

func NewAgentModels(creds AgentCredentials) *AgentModels {
	return &AgentModels{cached: map[string]model.ChatModel{}, creds: creds}
}

func (a *AgentModels) get(provider, modelName string) model.ChatModel {
	key := provider + ":" + modelName
	a.mu.Lock()
	defer a.mu.Unlock()
	if m, ok := a.cached[key]; ok {
		return m
	}
	var m model.ChatModel
	switch provider {
	case "openai":
		m = model.NewOpenAIModel(a.creds.OpenAIKey, modelName)
	case "google", "gemini":
		m = model.NewGoogleModel(a.creds.GoogleKey, modelName)
	default:
		m = model.NewAnthropicModel(a.creds.AnthropicKey, modelName)
	}
	a.cached[key] = m
	return m
}

// NewAgentHandler returns a Handler dispatching agent blocks to whichever
// provider logic.agent_provider names (default "anthropic").
func NewAgentHandler(models *AgentModels) engine.Handler {
	return engine.HandlerFunc(func(ctx context.Context, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
		return agentHandle(ctx, block, wctx, models)
	})
}

func agentHandle(ctx context.Context, block engine.Block, wctx *engine.WorkflowContext, models *AgentModels) (engine.BlockResult, error) {
	provider := logicString(block, wctx, "agent_provider", "anthropic")
	modelName := logicString(block, wctx, "agent_model", "")
	prompt := logicString(block, wctx, "agent_prompt", "")
	if prompt == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "agent_prompt is required", nil)
	}
	systemPrompt := logicString(block, wctx, "agent_system", "")

	messages := make([]model.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: prompt})

	tools := agentTools(block, wctx)

	m := models.get(provider, modelName)
	out, err := m.Chat(ctx, messages, tools)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeUpstream, "agent: "+err.Error(), err)
	}

	result := map[string]any{"text": out.Text}
	if len(out.ToolCalls) > 0 {
		calls := make([]map[string]any, len(out.ToolCalls))
		for i, tc := range out.ToolCalls {
			calls[i] = map[string]any{"name": tc.Name, "input": tc.Input}
		}
		result["tool_calls"] = calls
	}

	return engine.BlockResult{StateDelta: bind(block, "agent_response", result)}, nil
}

func agentTools(block engine.Block, wctx *engine.WorkflowContext) []model.ToolSpec {
	raw, ok := logicAny(block, wctx, "agent_tools")
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	tools := make([]model.ToolSpec, 0, len(items))
	for _, it := range items {
		spec, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name, _ := spec["name"].(string)
		if name == "" {
			continue
		}
		desc, _ := spec["description"].(string)
		schema, _ := spec["schema"].(map[string]any)
		tools = append(tools, model.ToolSpec{Name: name, Description: desc, Schema: schema})
	}
	return tools
}
