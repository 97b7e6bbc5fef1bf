// Package botbuilder provides a top-level convenience entry point for
// embedding the workflow execution engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/rasad8686/BotBuilder-Platform-sub005"
//
//	eng, channel, err := botbuilder.New(botbuilder.WithConfig(cfg), botbuilder.WithLogger(logger))
//	result := eng.Execute(ctx, workflowID, input, requesterID)
//
// The cmd/botbuilder server wires the same pieces plus the WebSocket
// gateway and the Redis bridge; use this package when embedding the engine
// into another service.
package botbuilder

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/agent"
	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
	"github.com/rasad8686/BotBuilder-Platform-sub005/engine"
	"github.com/rasad8686/BotBuilder-Platform-sub005/events"
	"github.com/rasad8686/BotBuilder-Platform-sub005/llm"
	"github.com/rasad8686/BotBuilder-Platform-sub005/store"
)

type options struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   llm.ModelClient
	resolver engine.CapabilityResolver
}

// Option configures the engine created by [New].
type Option func(*options)

// WithConfig supplies a full configuration. Defaults apply when omitted.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithModelClient overrides the provider client, keeping the default
// prompt-capability resolver.
func WithModelClient(client llm.ModelClient) Option {
	return func(o *options) { o.client = client }
}

// WithResolver replaces capability resolution entirely.
func WithResolver(resolver engine.CapabilityResolver) Option {
	return func(o *options) { o.resolver = resolver }
}

// New opens the configured database and assembles an Engine with its event
// channel. The caller owns the channel: attach subscribers or a bridge as
// needed.
func New(opts ...Option) (*engine.Engine, *events.Channel, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	db, err := store.Open(o.cfg.Database, o.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	stores := store.NewStores(db, o.logger)

	channel := events.NewChannel(o.logger, nil)

	resolver := o.resolver
	if resolver == nil {
		client := o.client
		if client == nil {
			client = llm.NewRateLimitedClient(llm.NewHTTPClient(o.cfg.LLM, o.logger), o.cfg.LLM, o.logger)
		}
		resolver = agent.NewResolver(client, o.logger)
	}

	eng := engine.New(engine.Options{
		Workflows:  stores.Workflows,
		Agents:     stores.Agents,
		Executions: stores.Executions,
		Steps:      stores.Steps,
		Channel:    channel,
		Resolver:   resolver,
		Logger:     o.logger,
		Engine:     o.cfg.Engine,
	})
	return eng, channel, nil
}
