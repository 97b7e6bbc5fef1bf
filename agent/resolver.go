package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/llm"
	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// Resolver builds prompt capabilities over one shared model client. Token
// counters are cached per model because building an encoding is expensive.
type Resolver struct {
	client llm.ModelClient
	logger *zap.Logger

	mu       sync.Mutex
	counters map[string]llm.TokenCounter
}

// NewResolver creates a resolver over client.
func NewResolver(client llm.ModelClient, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:   client,
		logger:   logger,
		counters: make(map[string]llm.TokenCounter),
	}
}

// Resolve implements the engine's capability resolution.
func (r *Resolver) Resolve(_ context.Context, def *types.AgentDefinition) (types.Capability, error) {
	return NewPromptCapability(def, r.client, r.counter(def.Model), r.logger), nil
}

func (r *Resolver) counter(model string) llm.TokenCounter {
	r.mu.Lock()
	defer r.mu.Unlock()
	counter, ok := r.counters[model]
	if !ok {
		counter = llm.NewCounter(model)
		r.counters[model] = counter
	}
	return counter
}
