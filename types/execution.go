package types

import "context"

// ExecutionStatus is the lifecycle state of a workflow execution.
// An execution is created running and transitions exactly once to
// completed or failed.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// StepStatus is the lifecycle state of a single agent invocation. Retries
// happen inside a step, before it reaches a terminal status.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// WorkflowExecution is the persisted record of one run of a workflow.
type WorkflowExecution struct {
	ID          string          `json:"id"`
	WorkflowID  int64           `json:"workflowId"`
	RequesterID int64           `json:"requesterId"`
	Status      ExecutionStatus `json:"status"`
	Output      any             `json:"output,omitempty"`
	TotalTokens int64           `json:"totalTokens"`
	DurationMS  int64           `json:"durationMs"`
	Error       string          `json:"error,omitempty"`
}

// AgentExecutionStep is the persisted record of one agent invocation
// within a run.
type AgentExecutionStep struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"executionId"`
	AgentID     int64      `json:"agentId"`
	Order       int        `json:"order"`
	Status      StepStatus `json:"status"`
	Input       any        `json:"input,omitempty"`
	Output      any        `json:"output,omitempty"`
	TokensUsed  int64      `json:"tokensUsed"`
	DurationMS  int64      `json:"durationMs"`
	Retries     int        `json:"retries"`
	Error       string     `json:"error,omitempty"`
}

// AgentBreakdown aggregates all steps of one agent within a run.
type AgentBreakdown struct {
	AgentID    int64  `json:"agentId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	DurationMS int64  `json:"duration"`
	Tokens     int64  `json:"tokens"`
}

// ExecutionResult is what Engine.Execute returns to callers. Callers always
// receive a structured result, never a raw error.
type ExecutionResult struct {
	Status         ExecutionStatus  `json:"status"`
	ExecutionID    string           `json:"executionId"`
	Output         any              `json:"output,omitempty"`
	TotalTokens    int64            `json:"totalTokens,omitempty"`
	DurationMS     int64            `json:"durationMs,omitempty"`
	Cost           float64          `json:"cost,omitempty"`
	AgentBreakdown []AgentBreakdown `json:"agentBreakdown,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// InvokeResult is what an agent capability reports for one invocation.
// Success false with a non-empty Error is a soft failure and is retried
// the same way a returned error is.
type InvokeResult struct {
	Success    bool   `json:"success"`
	Output     any    `json:"output,omitempty"`
	TokensUsed int64  `json:"tokensUsed"`
	Error      string `json:"error,omitempty"`
}

// Capability is an external unit of agent work: it turns an input into an
// output and reports token usage. Implementations may read and append to
// the shared execution context but must not overwrite entries written by
// concurrent steps.
type Capability interface {
	Execute(ctx context.Context, input any, ec *ExecutionContext) (*InvokeResult, error)
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, input any, ec *ExecutionContext) (*InvokeResult, error)

// Execute implements Capability.
func (f CapabilityFunc) Execute(ctx context.Context, input any, ec *ExecutionContext) (*InvokeResult, error) {
	return f(ctx, input, ec)
}
