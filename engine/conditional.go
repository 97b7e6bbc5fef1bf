package engine

import (
	"context"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// runConditional walks the route table single-threaded: execute the current
// agent, find the first route whose fromAgentId matches it and whose
// condition holds against its output, continue at that route's target. No
// matching route is the normal terminal state, not a failure. Revisiting an
// agent means the route table cycles, which fails the run.
func (r *run) runConditional(ctx context.Context, input any) (any, error) {
	current := r.workflow.EntryAgentID
	if current == 0 {
		return nil, types.NewError(types.ErrInvalidWorkflow, "Conditional workflow has no entry agent")
	}

	visited := make(map[int64]struct{})
	output := input
	order := 0

	for {
		if _, seen := visited[current]; seen {
			return nil, types.NewErrorf(types.ErrCycleDetected, "Cycle detected at agent %d", current)
		}
		visited[current] = struct{}{}

		step, err := r.processStep(ctx, current, output, order)
		if err != nil {
			return nil, err
		}
		output = step.Output
		order++

		next, ok := r.findRoute(current, output)
		if !ok {
			return output, nil
		}
		current = next
	}
}

// findRoute returns the target of the first route leaving fromID whose
// condition evaluates true against output.
func (r *run) findRoute(fromID int64, output any) (int64, bool) {
	if r.workflow.FlowConfig == nil {
		return 0, false
	}
	for _, route := range r.workflow.FlowConfig.Routes {
		if route.FromAgentID != fromID {
			continue
		}
		if EvaluateCondition(route.Condition, output) {
			return route.TargetAgentID, true
		}
	}
	return 0, false
}
