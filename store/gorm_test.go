package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	return NewStores(db, zap.NewNop())
}

func TestWorkflowStore_RoundTrip(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	wf := &types.Workflow{
		Name: "research pipeline",
		Type: types.WorkflowConditional,
		AgentsConfig: []types.AgentRef{
			{AgentID: 1, Order: 0},
			{AgentID: 2, Order: 1},
		},
		EntryAgentID: 1,
		FlowConfig: &types.FlowConfig{
			Routes: []types.Route{
				{FromAgentID: 1, Condition: &types.Condition{Match: "next", HasMatch: true}, TargetAgentID: 2},
			},
		},
	}
	require.NoError(t, s.Workflows.Create(ctx, wf))
	require.NotZero(t, wf.ID)

	got, err := s.Workflows.FindByID(ctx, wf.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "research pipeline", got.Name)
	assert.Equal(t, types.WorkflowConditional, got.Type)
	require.Len(t, got.AgentsConfig, 2)
	assert.Equal(t, int64(1), got.AgentsConfig[0].AgentID)
	require.NotNil(t, got.FlowConfig)
	require.Len(t, got.FlowConfig.Routes, 1)
	require.NotNil(t, got.FlowConfig.Routes[0].Condition)
	assert.True(t, got.FlowConfig.Routes[0].Condition.HasMatch)
	assert.Equal(t, "next", got.FlowConfig.Routes[0].Condition.Match)
}

func TestWorkflowStore_FindByID_Missing(t *testing.T) {
	s := newTestStores(t)

	got, err := s.Workflows.FindByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAgentStore_RoundTrip(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	def := &types.AgentDefinition{
		Name:         "researcher",
		Role:         "researcher",
		Model:        "gpt-4o-mini",
		SystemPrompt: "You research topics.",
		Config:       map[string]any{"temperature": 0.2},
	}
	require.NoError(t, s.Agents.Create(ctx, def))

	got, err := s.Agents.FindByID(ctx, def.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "researcher", got.Role)
	assert.Equal(t, 0.2, got.Config["temperature"])

	missing, err := s.Agents.FindByID(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExecutionStore_CreateAndTerminalUpdate(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	exec := &types.WorkflowExecution{
		ID:         uuid.NewString(),
		WorkflowID: 7,
		Status:     types.ExecutionRunning,
	}
	require.NoError(t, s.Executions.Create(ctx, exec))

	require.NoError(t, s.Executions.Update(ctx, exec.ID, ExecutionPatch{
		Status:      types.ExecutionCompleted,
		Output:      "final answer",
		TotalTokens: 420,
		DurationMS:  1234,
	}))

	got, err := s.Executions.Get(ctx, exec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.ExecutionCompleted, got.Status)
	assert.Equal(t, "final answer", got.Output)
	assert.EqualValues(t, 420, got.TotalTokens)
}

func TestExecutionStore_UpdateMissing(t *testing.T) {
	s := newTestStores(t)

	err := s.Executions.Update(context.Background(), uuid.NewString(), ExecutionPatch{
		Status: types.ExecutionFailed,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such record")
}

func TestStepRecorder_CompleteAndFail(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	execID := uuid.NewString()

	first := &types.AgentExecutionStep{
		ID:          uuid.NewString(),
		ExecutionID: execID,
		AgentID:     1,
		Order:       0,
		Status:      types.StepRunning,
		Input:       "question",
	}
	require.NoError(t, s.Steps.Create(ctx, first))
	require.NoError(t, s.Steps.Complete(ctx, first.ID, "answer", 100, 50))

	second := &types.AgentExecutionStep{
		ID:          uuid.NewString(),
		ExecutionID: execID,
		AgentID:     2,
		Order:       1,
		Status:      types.StepRunning,
	}
	require.NoError(t, s.Steps.Create(ctx, second))
	require.NoError(t, s.Steps.Fail(ctx, second.ID, "provider unavailable", 75))

	steps, err := s.Steps.ListByExecution(ctx, execID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, types.StepCompleted, steps[0].Status)
	assert.Equal(t, "answer", steps[0].Output)
	assert.EqualValues(t, 100, steps[0].TokensUsed)
	assert.Equal(t, types.StepFailed, steps[1].Status)
	assert.Equal(t, "provider unavailable", steps[1].Error)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
