// Package engine orchestrates workflow executions: it resolves a stored
// workflow definition into agent invocations across four topologies
// (sequential, parallel, conditional, mixed), retries failing steps with a
// fixed delay, accounts token cost, persists the outcome, and drives the
// real-time event channel.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
	"github.com/rasad8686/BotBuilder-Platform-sub005/events"
	"github.com/rasad8686/BotBuilder-Platform-sub005/internal/metrics"
	"github.com/rasad8686/BotBuilder-Platform-sub005/store"
	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// CapabilityResolver turns a stored agent definition into a runnable
// capability. The LLM-backed resolver lives in the agent package; tests
// supply stubs.
type CapabilityResolver interface {
	Resolve(ctx context.Context, def *types.AgentDefinition) (types.Capability, error)
}

// Options carries the collaborators an Engine needs.
type Options struct {
	Workflows  store.WorkflowStore
	Agents     store.AgentStore
	Executions store.ExecutionStore
	Steps      store.StepRecorder
	Channel    *events.Channel
	Resolver   CapabilityResolver
	Metrics    *metrics.Collector
	Logger     *zap.Logger
	Engine     config.EngineConfig
}

// Engine executes stored workflows. Safe for concurrent use; every call to
// Execute owns its own execution context and step records, sharing only the
// agent registry.
type Engine struct {
	workflows  store.WorkflowStore
	agents     store.AgentStore
	executions store.ExecutionStore
	steps      store.StepRecorder
	channel    *events.Channel
	resolver   CapabilityResolver
	registry   *Registry
	metrics    *metrics.Collector
	logger     *zap.Logger
	tracer     trace.Tracer

	maxRetries int
	retryDelay time.Duration
}

// New creates an Engine. Zero retry settings fall back to the defaults
// (3 retries, 1s fixed delay).
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := opts.Engine.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := opts.Engine.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Engine{
		workflows:  opts.Workflows,
		agents:     opts.Agents,
		executions: opts.Executions,
		steps:      opts.Steps,
		channel:    opts.Channel,
		resolver:   opts.Resolver,
		registry:   NewRegistry(),
		metrics:    opts.Metrics,
		logger:     logger.With(zap.String("component", "engine")),
		tracer:     otel.Tracer("botbuilder/engine"),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Registry exposes the engine's agent registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Clear resets the agent registry. Must not run while an execution is in
// flight.
func (e *Engine) Clear() { e.registry.Clear() }

// run is the per-execution state: the workflow being executed, the shared
// execution context, and the step records accumulated so far. Parallel
// branches append steps concurrently.
type run struct {
	engine      *Engine
	workflow    *types.Workflow
	executionID string
	ec          *types.ExecutionContext

	mu    sync.Mutex
	steps []*types.AgentExecutionStep
}

func (r *run) addStep(step *types.AgentExecutionStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

// recordedSteps returns the accumulated step records ordered by step order.
func (r *run) recordedSteps() []*types.AgentExecutionStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.AgentExecutionStep, len(r.steps))
	copy(out, r.steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Execute runs the workflow against input and returns a structured result.
// It never returns a raw error: load failures, step failures, and topology
// failures all resolve to a result with status "failed".
func (e *Engine) Execute(ctx context.Context, workflowID int64, input any, requesterID int64) *types.ExecutionResult {
	start := time.Now()
	executionID := uuid.NewString()

	ctx, span := e.tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.Int64("workflow.id", workflowID),
		attribute.String("execution.id", executionID),
	))
	defer span.End()

	logger := e.logger.With(
		zap.Int64("workflow_id", workflowID),
		zap.String("execution_id", executionID),
	)

	workflow, err := e.workflows.FindByID(ctx, workflowID)
	if err != nil {
		logger.Error("workflow lookup failed", zap.Error(err))
		return failedResult(executionID, fmt.Sprintf("Workflow lookup failed: %v", err))
	}
	if workflow == nil {
		logger.Warn("workflow not found")
		return failedResult(executionID, fmt.Sprintf("Workflow not found: %d", workflowID))
	}
	if !workflow.Type.Valid() {
		return failedResult(executionID, fmt.Sprintf("Unknown workflow type: %s", workflow.Type))
	}

	if err := e.registerAgents(ctx, workflow); err != nil {
		logger.Warn("agent registration failed", zap.Error(err))
		return failedResult(executionID, err.Error())
	}

	exec := &types.WorkflowExecution{
		ID:          executionID,
		WorkflowID:  workflowID,
		RequesterID: requesterID,
		Status:      types.ExecutionRunning,
	}
	if err := e.executions.Create(ctx, exec); err != nil {
		logger.Error("create execution record failed", zap.Error(err))
		return failedResult(executionID, fmt.Sprintf("Create execution record failed: %v", err))
	}

	e.channel.EmitExecutionStart(executionID, workflow.ID, string(workflow.Type))
	logger.Info("workflow execution started",
		zap.String("workflow_type", string(workflow.Type)),
		zap.Int64("requester_id", requesterID),
	)

	r := &run{
		engine:      e,
		workflow:    workflow,
		executionID: executionID,
		ec:          types.NewExecutionContext(),
	}

	output, err := r.dispatch(ctx, input)
	duration := time.Since(start)
	if err != nil {
		return e.handleError(ctx, workflow, executionID, err, r.ec, duration)
	}

	steps := r.recordedSteps()
	var totalTokens int64
	for _, step := range steps {
		totalTokens += step.TokensUsed
	}
	cost := CalculateCost(totalTokens)
	breakdown := BuildAgentBreakdown(steps, e.registry)

	patch := store.ExecutionPatch{
		Status:      types.ExecutionCompleted,
		Output:      output,
		TotalTokens: totalTokens,
		DurationMS:  duration.Milliseconds(),
	}
	if err := e.executions.Update(ctx, executionID, patch); err != nil {
		logger.Error("mark execution completed failed", zap.Error(err))
	}

	e.metrics.RecordExecution(string(workflow.Type), string(types.ExecutionCompleted), duration)
	e.metrics.RecordCost(cost)
	e.channel.EmitExecutionComplete(executionID, output, totalTokens, duration.Milliseconds())

	logger.Info("workflow execution completed",
		zap.Int64("total_tokens", totalTokens),
		zap.Duration("duration", duration),
	)

	return &types.ExecutionResult{
		Status:         types.ExecutionCompleted,
		ExecutionID:    executionID,
		Output:         output,
		TotalTokens:    totalTokens,
		DurationMS:     duration.Milliseconds(),
		Cost:           cost,
		AgentBreakdown: breakdown,
	}
}

// dispatch selects the topology executor.
func (r *run) dispatch(ctx context.Context, input any) (any, error) {
	switch r.workflow.Type {
	case types.WorkflowSequential:
		output, _, err := r.runSequence(ctx, r.workflow.AgentsConfig, input, 0)
		return output, err
	case types.WorkflowParallel:
		output, _, err := r.runParallel(ctx, r.workflow.AgentsConfig, input, 0)
		return output, err
	case types.WorkflowConditional:
		return r.runConditional(ctx, input)
	case types.WorkflowMixed:
		return r.runMixed(ctx, input)
	}
	return nil, types.NewErrorf(types.ErrInvalidWorkflow, "Unknown workflow type: %s", r.workflow.Type)
}

// registerAgents loads and registers every agent the workflow references.
// Idempotent per run: already-registered ids are not reloaded.
func (e *Engine) registerAgents(ctx context.Context, workflow *types.Workflow) error {
	for _, id := range referencedAgentIDs(workflow) {
		if _, _, ok := e.registry.Get(id); ok {
			continue
		}
		def, err := e.agents.FindByID(ctx, id)
		if err != nil {
			return types.NewErrorf(types.ErrStoreError, "Agent lookup failed: %v", err).WithCause(err)
		}
		if def == nil {
			return types.NewErrorf(types.ErrAgentNotFound, "Agent not found: %d", id)
		}
		capability, err := e.resolver.Resolve(ctx, def)
		if err != nil {
			return types.NewErrorf(types.ErrProviderError, "Agent %d could not be loaded: %v", id, err).WithCause(err)
		}
		e.registry.Register(id, capability, def)
	}
	return nil
}

// referencedAgentIDs collects every agent id the workflow mentions, in
// first-reference order, without duplicates: agents_config entries, the
// conditional entry agent and route endpoints, and mixed stage members.
func referencedAgentIDs(workflow *types.Workflow) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	add := func(id int64) {
		if id == 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, ref := range workflow.AgentsConfig {
		add(ref.AgentID)
	}
	add(workflow.EntryAgentID)
	if workflow.FlowConfig != nil {
		for _, route := range workflow.FlowConfig.Routes {
			add(route.FromAgentID)
			add(route.TargetAgentID)
		}
		for _, stage := range workflow.FlowConfig.Stages {
			for _, ref := range stage.Agents {
				add(ref.AgentID)
			}
		}
	}
	return ids
}

// handleError is the sole site where a terminal failure is written to the
// execution record. The record carries the normalized message and a
// serialized context snapshot for postmortems.
func (e *Engine) handleError(ctx context.Context, workflow *types.Workflow, executionID string, runErr error, ec *types.ExecutionContext, duration time.Duration) *types.ExecutionResult {
	msg := runErr.Error()

	patch := store.ExecutionPatch{
		Status:          types.ExecutionFailed,
		Error:           msg,
		DurationMS:      duration.Milliseconds(),
		ContextSnapshot: ec.Snapshot(),
	}
	if err := e.executions.Update(ctx, executionID, patch); err != nil {
		e.logger.Error("mark execution failed failed",
			zap.String("execution_id", executionID),
			zap.Error(err),
		)
	}

	e.metrics.RecordExecution(string(workflow.Type), string(types.ExecutionFailed), duration)
	e.channel.EmitExecutionError(executionID, msg)

	e.logger.Error("workflow execution failed",
		zap.Int64("workflow_id", workflow.ID),
		zap.String("execution_id", executionID),
		zap.String("error_code", string(types.GetErrorCode(runErr))),
		zap.String("error", msg),
	)

	return failedResult(executionID, msg)
}

func failedResult(executionID, msg string) *types.ExecutionResult {
	return &types.ExecutionResult{
		Status:      types.ExecutionFailed,
		ExecutionID: executionID,
		Error:       msg,
	}
}

// ObserveSignals consumes the channel's advisory pause/stop feed until ctx
// is done. Signals are notification-only: the engine logs them and
// acknowledges pause requests with an execution:paused event, but does not
// suspend an in-flight topology.
func (e *Engine) ObserveSignals(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-e.channel.Signals():
			e.logger.Info("control signal observed",
				zap.String("kind", string(sig.Kind)),
				zap.String("execution_id", sig.ExecutionID),
				zap.String("requested_by", sig.RequestedBy),
			)
			if sig.Kind == events.SignalPause {
				e.channel.EmitExecutionPaused(sig.ExecutionID, sig.RequestedBy)
			}
		}
	}
}
