package engine

import (
	"context"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// runSequence executes refs strictly in configured order, chaining each
// step's output into the next step's input. The first ref receives input
// unchanged. Returns the last step's output and the next free step order.
// A terminal step failure aborts the remaining steps.
func (r *run) runSequence(ctx context.Context, refs []types.AgentRef, input any, baseOrder int) (any, int, error) {
	output := input
	order := baseOrder
	for _, ref := range types.SortAgentRefs(refs) {
		step, err := r.processStep(ctx, ref.AgentID, output, order)
		if err != nil {
			return nil, order, err
		}
		output = step.Output
		order++
	}
	return output, order, nil
}
