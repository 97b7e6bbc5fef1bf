package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// WorkflowModel is the workflows table. Topology configuration is stored as
// JSON text so the same schema serves all four workflow types.
type WorkflowModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:255;not null"`
	Type         string `gorm:"size:32;not null;index"`
	AgentsConfig string `gorm:"type:text"`
	EntryAgentID int64
	FlowConfig   string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides GORM's pluralization.
func (WorkflowModel) TableName() string { return "workflows" }

// AgentModel is the agents table.
type AgentModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:255;not null"`
	Role         string `gorm:"size:64"`
	Model        string `gorm:"size:128"`
	SystemPrompt string `gorm:"type:text"`
	Config       string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AgentModel) TableName() string { return "agents" }

// ExecutionModel is the workflow_executions table, one row per run.
type ExecutionModel struct {
	ID              string `gorm:"primaryKey;size:36"`
	WorkflowID      int64  `gorm:"index;not null"`
	RequesterID     int64  `gorm:"index"`
	Status          string `gorm:"size:16;not null;index"`
	Output          string `gorm:"type:text"`
	TotalTokens     int64
	DurationMS      int64
	Error           string `gorm:"type:text"`
	ContextSnapshot string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ExecutionModel) TableName() string { return "workflow_executions" }

// StepModel is the agent_execution_steps table, one row per invocation.
type StepModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	ExecutionID string `gorm:"index;not null"`
	AgentID     int64  `gorm:"index;not null"`
	StepOrder   int    `gorm:"column:step_order"`
	Status      string `gorm:"size:16;not null"`
	Input       string `gorm:"type:text"`
	Output      string `gorm:"type:text"`
	TokensUsed  int64
	DurationMS  int64
	Retries     int
	Error       string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (StepModel) TableName() string { return "agent_execution_steps" }

// toWorkflow converts a stored row to the domain type.
func (m *WorkflowModel) toWorkflow() (*types.Workflow, error) {
	wf := &types.Workflow{
		ID:           m.ID,
		Name:         m.Name,
		Type:         types.WorkflowType(m.Type),
		EntryAgentID: m.EntryAgentID,
	}
	if m.AgentsConfig != "" {
		if err := json.Unmarshal([]byte(m.AgentsConfig), &wf.AgentsConfig); err != nil {
			return nil, fmt.Errorf("workflow %d: parse agents_config: %w", m.ID, err)
		}
	}
	if m.FlowConfig != "" {
		var fc types.FlowConfig
		if err := json.Unmarshal([]byte(m.FlowConfig), &fc); err != nil {
			return nil, fmt.Errorf("workflow %d: parse flow_config: %w", m.ID, err)
		}
		wf.FlowConfig = &fc
	}
	return wf, nil
}

// toAgentDefinition converts a stored row to the domain type.
func (m *AgentModel) toAgentDefinition() (*types.AgentDefinition, error) {
	def := &types.AgentDefinition{
		ID:           m.ID,
		Name:         m.Name,
		Role:         m.Role,
		Model:        m.Model,
		SystemPrompt: m.SystemPrompt,
	}
	if m.Config != "" {
		if err := json.Unmarshal([]byte(m.Config), &def.Config); err != nil {
			return nil, fmt.Errorf("agent %d: parse config: %w", m.ID, err)
		}
	}
	return def, nil
}

// marshalValue serializes an arbitrary input/output value for a text column.
func marshalValue(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}
