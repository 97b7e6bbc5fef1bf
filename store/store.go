// Package store persists workflow definitions, agent definitions, execution
// records, and per-invocation step records behind narrow interfaces the
// engine consumes. The GORM implementation supports postgres, mysql, and
// sqlite.
package store

import (
	"context"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// WorkflowStore looks up stored workflow definitions.
// FindByID returns (nil, nil) when no workflow exists with that id; the
// engine owns the canonical not-found message.
type WorkflowStore interface {
	FindByID(ctx context.Context, id int64) (*types.Workflow, error)
}

// AgentStore looks up stored agent definitions.
// FindByID returns (nil, nil) when no agent exists with that id.
type AgentStore interface {
	FindByID(ctx context.Context, id int64) (*types.AgentDefinition, error)
}

// ExecutionPatch carries the single terminal update applied to an
// execution record.
type ExecutionPatch struct {
	Status      types.ExecutionStatus
	Output      any
	TotalTokens int64
	DurationMS  int64
	Error       string
	// ContextSnapshot is the serialized execution context, written only on
	// failure.
	ContextSnapshot map[string]any
}

// ExecutionStore records the overall run. Create writes the record in
// running state before any step executes; Update applies exactly one
// terminal transition.
type ExecutionStore interface {
	Create(ctx context.Context, exec *types.WorkflowExecution) error
	Update(ctx context.Context, id string, patch ExecutionPatch) error
}

// StepRecorder records start, completion, and failure of each agent
// invocation. A step is created running and reaches exactly one terminal
// state; retries happen before that transition.
type StepRecorder interface {
	Create(ctx context.Context, step *types.AgentExecutionStep) error
	Complete(ctx context.Context, stepID string, output any, tokensUsed, durationMS int64) error
	Fail(ctx context.Context, stepID string, errMsg string, durationMS int64) error
}
