package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

func TestCalculateCost(t *testing.T) {
	assert.Zero(t, CalculateCost(0))
	assert.Zero(t, CalculateCost(-5))
	assert.InDelta(t, 0.002, CalculateCost(1000), 1e-12)
	assert.InDelta(t, 0.2, CalculateCost(100000), 1e-12)
}

func TestCalculateCostProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tokens := rapid.Int64Range(0, 1_000_000_000).Draw(t, "tokens")
		cost := CalculateCost(tokens)
		assert.GreaterOrEqual(t, cost, 0.0)
		assert.InDelta(t, float64(tokens)*0.000002, cost, 1e-9)
	})
}

func TestBuildAgentBreakdownGroupsByAgent(t *testing.T) {
	registry := NewRegistry()
	registry.Register(1, nil, &types.AgentDefinition{ID: 1, Name: "router", Role: "dispatcher"})
	registry.Register(2, nil, &types.AgentDefinition{ID: 2, Name: "writer"})

	steps := []*types.AgentExecutionStep{
		{AgentID: 1, Order: 0, DurationMS: 100, TokensUsed: 10},
		{AgentID: 2, Order: 1, DurationMS: 50, TokensUsed: 5},
		{AgentID: 1, Order: 2, DurationMS: 30, TokensUsed: 7},
	}

	breakdown := BuildAgentBreakdown(steps, registry)

	require.Len(t, breakdown, 2)

	assert.Equal(t, int64(1), breakdown[0].AgentID, "entry order follows first-seen agent order")
	assert.Equal(t, "router", breakdown[0].Name)
	assert.Equal(t, "dispatcher", breakdown[0].Role)
	assert.Equal(t, int64(130), breakdown[0].DurationMS, "two steps of the same agent sum durations")
	assert.Equal(t, int64(17), breakdown[0].Tokens)

	assert.Equal(t, "writer", breakdown[1].Name)
	assert.Equal(t, "agent", breakdown[1].Role, "missing role defaults to agent")
}

func TestBuildAgentBreakdownUnregisteredAgent(t *testing.T) {
	steps := []*types.AgentExecutionStep{{AgentID: 9, TokensUsed: 3}}
	breakdown := BuildAgentBreakdown(steps, NewRegistry())

	require.Len(t, breakdown, 1)
	assert.Equal(t, "agent", breakdown[0].Role)
	assert.Empty(t, breakdown[0].Name)
}
