package engine

import (
	"context"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// runMixed executes flow_config.stages in order. Each stage is a sequential
// or parallel run over its own agent subset; one stage's output feeds the
// next. Only the final stage's output becomes the run's output. An empty
// stage list is valid and passes the input through unchanged.
func (r *run) runMixed(ctx context.Context, input any) (any, error) {
	var stages []types.Stage
	if r.workflow.FlowConfig != nil {
		stages = r.workflow.FlowConfig.Stages
	}

	output := input
	order := 0
	for _, stage := range stages {
		var err error
		switch stage.Type {
		case types.StageSequential:
			output, order, err = r.runSequence(ctx, stage.Agents, output, order)
		case types.StageParallel:
			output, order, err = r.runParallel(ctx, stage.Agents, output, order)
		default:
			return nil, types.NewErrorf(types.ErrInvalidWorkflow, "Unknown stage type: %s", stage.Type)
		}
		if err != nil {
			return nil, err
		}
	}
	return output, nil
}
