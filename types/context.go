package types

import (
	"sync"
	"time"
)

// AgentOutput is one entry of the execution context's append-only output log.
type AgentOutput struct {
	AgentID int64     `json:"agentId"`
	Output  any       `json:"output"`
	At      time.Time `json:"at"`
}

// ExecutionContext is the mutable state shared by all steps of one run:
// key/value variables, the current-agent marker, and an append-only log of
// agent outputs. It is created at run start, owned by exactly one run, and
// discarded at run end.
//
// Concurrent steps of a parallel stage share the same context, so all
// methods are safe for concurrent use. Writers of shared state append;
// CurrentAgent is last-writer-wins and only informational.
type ExecutionContext struct {
	mu           sync.RWMutex
	variables    map[string]any
	currentAgent int64
	agentOutputs []AgentOutput
}

// NewExecutionContext creates an empty execution context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{variables: make(map[string]any)}
}

// SetVariable stores a key/value pair.
func (ec *ExecutionContext) SetVariable(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.variables[key] = value
}

// Variable returns the value stored under key.
func (ec *ExecutionContext) Variable(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.variables[key]
	return v, ok
}

// Variables returns a copy of the variable map.
func (ec *ExecutionContext) Variables() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]any, len(ec.variables))
	for k, v := range ec.variables {
		out[k] = v
	}
	return out
}

// SetCurrentAgent records the agent currently executing. Best-effort under
// parallel stages: the marker is not concurrency-authoritative.
func (ec *ExecutionContext) SetCurrentAgent(agentID int64) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.currentAgent = agentID
}

// CurrentAgent returns the last recorded current-agent marker.
func (ec *ExecutionContext) CurrentAgent() int64 {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.currentAgent
}

// AddAgentOutput appends one agent output to the log. Appending is the only
// write concurrent branches perform on shared output state.
func (ec *ExecutionContext) AddAgentOutput(agentID int64, output any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.agentOutputs = append(ec.agentOutputs, AgentOutput{
		AgentID: agentID,
		Output:  output,
		At:      time.Now().UTC(),
	})
}

// AgentOutputs returns a copy of the append-only output log in append order.
func (ec *ExecutionContext) AgentOutputs() []AgentOutput {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make([]AgentOutput, len(ec.agentOutputs))
	copy(out, ec.agentOutputs)
	return out
}

// LastOutput returns the most recently appended output, if any.
func (ec *ExecutionContext) LastOutput() (AgentOutput, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	if len(ec.agentOutputs) == 0 {
		return AgentOutput{}, false
	}
	return ec.agentOutputs[len(ec.agentOutputs)-1], true
}

// Snapshot serializes the context for the failure record written when a run
// terminates with an error.
func (ec *ExecutionContext) Snapshot() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	vars := make(map[string]any, len(ec.variables))
	for k, v := range ec.variables {
		vars[k] = v
	}
	outputs := make([]AgentOutput, len(ec.agentOutputs))
	copy(outputs, ec.agentOutputs)
	return map[string]any{
		"variables":    vars,
		"currentAgent": ec.currentAgent,
		"agentOutputs": outputs,
	}
}
