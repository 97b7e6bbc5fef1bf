package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// WorkflowType selects the execution topology for a workflow.
type WorkflowType string

const (
	// WorkflowSequential runs agents one after another, chaining outputs.
	WorkflowSequential WorkflowType = "sequential"
	// WorkflowParallel fans the same input out to every agent concurrently.
	WorkflowParallel WorkflowType = "parallel"
	// WorkflowConditional walks a route table driven by agent outputs.
	WorkflowConditional WorkflowType = "conditional"
	// WorkflowMixed runs staged mixtures of sequential and parallel subsets.
	WorkflowMixed WorkflowType = "mixed"
)

// Valid reports whether t is one of the four supported topologies.
func (t WorkflowType) Valid() bool {
	switch t {
	case WorkflowSequential, WorkflowParallel, WorkflowConditional, WorkflowMixed:
		return true
	}
	return false
}

// AgentRef is one entry of a workflow's agents_config: which agent runs,
// in what position, with what per-workflow configuration.
//
// Stored configs refer to the agent under either the "agentId" or the "id"
// key; both are accepted and normalized to AgentID when the entry is
// unmarshaled, so downstream code never branches on key presence.
type AgentRef struct {
	AgentID int64          `json:"agentId"`
	Order   int            `json:"order"`
	Config  map[string]any `json:"config,omitempty"`
}

// agentRefWire mirrors AgentRef with both accepted id keys.
type agentRefWire struct {
	AgentID *int64         `json:"agentId"`
	ID      *int64         `json:"id"`
	Order   int            `json:"order"`
	Config  map[string]any `json:"config,omitempty"`
}

// UnmarshalJSON accepts "agentId" or "id" as the agent reference key.
func (r *AgentRef) UnmarshalJSON(data []byte) error {
	var w agentRefWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.AgentID != nil:
		r.AgentID = *w.AgentID
	case w.ID != nil:
		r.AgentID = *w.ID
	default:
		return fmt.Errorf("agent entry missing agentId/id key")
	}
	r.Order = w.Order
	r.Config = w.Config
	return nil
}

// SortAgentRefs returns refs ordered by their configured Order, stable for
// equal orders. The input slice is not modified.
func SortAgentRefs(refs []AgentRef) []AgentRef {
	sorted := make([]AgentRef, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	return sorted
}

// Route is one edge of a conditional workflow's route table. When the agent
// identified by FromAgentID finishes and Condition evaluates true against
// its output, execution continues at TargetAgentID.
type Route struct {
	FromAgentID   int64      `json:"fromAgentId"`
	Condition     *Condition `json:"condition,omitempty"`
	TargetAgentID int64      `json:"targetAgentId"`
}

// StageType discriminates the two stage kinds of a mixed workflow.
type StageType string

const (
	StageSequential StageType = "sequential"
	StageParallel   StageType = "parallel"
)

// Stage is one step of a mixed workflow: a sequential or parallel run over
// a subset of agents. A stage's output feeds the next stage.
type Stage struct {
	Type   StageType  `json:"type"`
	Agents []AgentRef `json:"agents"`
}

// FlowConfig carries the topology-specific configuration: Routes for
// conditional workflows, Stages for mixed workflows.
type FlowConfig struct {
	Routes []Route `json:"routes,omitempty"`
	Stages []Stage `json:"stages,omitempty"`
}

// Workflow is a stored workflow definition. It is immutable for the
// duration of a run.
type Workflow struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Type         WorkflowType `json:"workflow_type"`
	AgentsConfig []AgentRef   `json:"agents_config"`
	EntryAgentID int64        `json:"entry_agent_id,omitempty"`
	FlowConfig   *FlowConfig  `json:"flow_config,omitempty"`
}

// AgentDefinition is a stored agent: the prompt, model, and role that turn
// an agent id into a runnable capability.
type AgentDefinition struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Role         string         `json:"role,omitempty"`
	Model        string         `json:"model,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
}
