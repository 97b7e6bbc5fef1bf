package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// processStep runs one agent invocation through its full lifecycle:
// running, up to maxRetries fixed-delay retries, then exactly one terminal
// transition. On success the shared context is updated and the step record
// returned; on exhausted retries the returned error carries the step order
// and the final failure message verbatim.
func (r *run) processStep(ctx context.Context, agentID int64, input any, order int) (*types.AgentExecutionStep, error) {
	e := r.engine

	capability, _, ok := e.registry.Get(agentID)
	if !ok {
		return nil, types.NewErrorf(types.ErrAgentNotFound, "Agent not found: %d", agentID)
	}

	step := &types.AgentExecutionStep{
		ID:          uuid.NewString(),
		ExecutionID: r.executionID,
		AgentID:     agentID,
		Order:       order,
		Status:      types.StepRunning,
		Input:       input,
	}
	if err := e.steps.Create(ctx, step); err != nil {
		return nil, types.NewErrorf(types.ErrStoreError, "Record step failed: %v", err).WithCause(err)
	}

	e.channel.EmitStepStart(r.executionID, agentID, order)
	start := time.Now()

	fail := func(attempt int, msg string) (*types.AgentExecutionStep, error) {
		durationMS := time.Since(start).Milliseconds()
		step.Status = types.StepFailed
		step.Error = msg
		step.DurationMS = durationMS
		step.Retries = attempt
		if err := e.steps.Fail(ctx, step.ID, msg, durationMS); err != nil {
			e.logger.Error("mark step failed failed",
				zap.String("step_id", step.ID),
				zap.Error(err),
			)
		}
		e.metrics.RecordStep(string(types.StepFailed), time.Since(start), 0)
		e.channel.EmitStepFailed(r.executionID, agentID, order, msg)
		r.addStep(step)
		return step, types.NewErrorf(types.ErrStepFailed, "Step %d failed: %s", order, msg)
	}

	for attempt := 0; ; attempt++ {
		result, err := capability.Execute(ctx, input, r.ec)

		var failure string
		switch {
		case err != nil:
			failure = err.Error()
		case result == nil:
			failure = "agent returned no result"
		case !result.Success:
			failure = result.Error
			if failure == "" {
				failure = "agent invocation failed"
			}
		default:
			durationMS := time.Since(start).Milliseconds()
			r.ec.SetCurrentAgent(agentID)
			r.ec.AddAgentOutput(agentID, result.Output)

			step.Status = types.StepCompleted
			step.Output = result.Output
			step.TokensUsed = result.TokensUsed
			step.DurationMS = durationMS
			step.Retries = attempt
			if err := e.steps.Complete(ctx, step.ID, result.Output, result.TokensUsed, durationMS); err != nil {
				e.logger.Error("mark step completed failed",
					zap.String("step_id", step.ID),
					zap.Error(err),
				)
			}

			e.metrics.RecordStep(string(types.StepCompleted), time.Since(start), result.TokensUsed)
			e.channel.EmitStepComplete(r.executionID, agentID, order, result.Output, result.TokensUsed, durationMS)
			r.addStep(step)
			return step, nil
		}

		if attempt >= e.maxRetries {
			return fail(attempt, failure)
		}

		// Fixed delay between attempts. Exponential backoff is the provider
		// rate-limit client's concern, not the step loop's.
		select {
		case <-ctx.Done():
			return fail(attempt, ctx.Err().Error())
		case <-time.After(e.retryDelay):
		}

		e.metrics.RecordRetry()
		e.channel.EmitStepProgress(r.executionID, agentID, order, map[string]any{
			"retry": attempt + 1,
			"error": failure,
		})
		e.logger.Warn("step retrying",
			zap.String("execution_id", r.executionID),
			zap.Int64("agent_id", agentID),
			zap.Int("order", order),
			zap.Int("attempt", attempt+1),
			zap.String("error", failure),
		)
	}
}
