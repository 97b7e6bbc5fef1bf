package engine

import (
	"context"
	"sync"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// runParallel fans the same input out to every ref concurrently. All
// branches run to their own terminal state; results are reassembled into
// configured order regardless of completion order. Any branch failure fails
// the whole operation, surfacing the first failure in configured order.
// The output shape is {"parallelResults": [...]}.
func (r *run) runParallel(ctx context.Context, refs []types.AgentRef, input any, baseOrder int) (any, int, error) {
	sorted := types.SortAgentRefs(refs)
	results := make([]any, len(sorted))
	errs := make([]error, len(sorted))

	var wg sync.WaitGroup
	for i, ref := range sorted {
		wg.Add(1)
		go func(i int, agentID int64) {
			defer wg.Done()
			step, err := r.processStep(ctx, agentID, input, baseOrder+i)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = step.Output
		}(i, ref.AgentID)
	}
	wg.Wait()

	nextOrder := baseOrder + len(sorted)
	for _, err := range errs {
		if err != nil {
			return nil, nextOrder, err
		}
	}
	return map[string]any{"parallelResults": results}, nextOrder, nil
}
