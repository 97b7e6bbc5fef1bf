package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

func TestRegistryRegisterGet(t *testing.T) {
	r := NewRegistry()

	_, _, ok := r.Get(1)
	assert.False(t, ok)

	capability := types.CapabilityFunc(func(_ context.Context, input any, _ *types.ExecutionContext) (*types.InvokeResult, error) {
		return &types.InvokeResult{Success: true, Output: input}, nil
	})
	def := &types.AgentDefinition{ID: 1, Name: "router"}
	r.Register(1, capability, def)

	got, gotDef, ok := r.Get(1)
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, "router", gotDef.Name)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(1, nil, &types.AgentDefinition{ID: 1, Name: "old"})
	r.Register(1, nil, &types.AgentDefinition{ID: 1, Name: "new"})

	_, def, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, "new", def.Name)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.Register(1, nil, &types.AgentDefinition{ID: 1})
	r.Register(2, nil, &types.AgentDefinition{ID: 2})
	require.Equal(t, 2, r.Len())

	r.Clear()
	assert.Equal(t, 0, r.Len())
	_, _, ok := r.Get(1)
	assert.False(t, ok)
}
