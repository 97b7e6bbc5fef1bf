// Package agent turns stored agent definitions into runnable capabilities
// backed by an LLM provider client.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/llm"
	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// PromptCapability runs one agent definition against a model client: the
// definition's system prompt frames the conversation, the step input is the
// user turn. Provider errors come back as soft failures so the engine's
// step retry decides what happens next.
type PromptCapability struct {
	def     *types.AgentDefinition
	client  llm.ModelClient
	counter llm.TokenCounter
	logger  *zap.Logger
}

// NewPromptCapability builds a capability for def.
func NewPromptCapability(def *types.AgentDefinition, client llm.ModelClient, counter llm.TokenCounter, logger *zap.Logger) *PromptCapability {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptCapability{
		def:     def,
		client:  client,
		counter: counter,
		logger: logger.With(
			zap.String("component", "agent_capability"),
			zap.Int64("agent_id", def.ID),
		),
	}
}

// Execute implements types.Capability.
func (c *PromptCapability) Execute(ctx context.Context, input any, ec *types.ExecutionContext) (*types.InvokeResult, error) {
	prompt, err := renderInput(input)
	if err != nil {
		return &types.InvokeResult{Success: false, Error: fmt.Sprintf("render input: %v", err)}, nil
	}

	completion, err := c.client.Complete(ctx, llm.Request{
		Model:        c.def.Model,
		SystemPrompt: c.def.SystemPrompt,
		Input:        prompt,
	})
	if err != nil {
		c.logger.Warn("agent invocation failed", zap.Error(err))
		return &types.InvokeResult{Success: false, Error: err.Error()}, nil
	}

	tokens := completion.TokensUsed
	if tokens == 0 && c.counter != nil {
		// Providers that omit usage get an estimated count over both sides
		// of the exchange.
		in, _ := c.counter.Count(c.def.SystemPrompt + prompt)
		out, _ := c.counter.Count(completion.Output)
		tokens = in + out
	}

	ec.SetVariable(fmt.Sprintf("agent_%d_output", c.def.ID), completion.Output)

	return &types.InvokeResult{
		Success:    true,
		Output:     completion.Output,
		TokensUsed: tokens,
	}, nil
}

// renderInput flattens a step input into prompt text. Strings pass through;
// structured inputs are serialized as JSON.
func renderInput(input any) (string, error) {
	switch v := input.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
