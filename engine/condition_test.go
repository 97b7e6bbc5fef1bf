package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

func TestEvaluateConditionNilIsAlwaysTrue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		output := rapid.String().Draw(t, "output")
		assert.True(t, EvaluateCondition(nil, output))
	})
}

func TestEvaluateConditionUnknownTypeIsAlwaysFalse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cond := &types.Condition{
			Type:  rapid.StringMatching(`[a-z]{4,12}`).Filter(func(s string) bool {
				return s != types.ConditionEquals && s != types.ConditionContains && s != types.ConditionDefault
			}).Draw(t, "type"),
			Field: rapid.String().Draw(t, "field"),
			Value: rapid.String().Draw(t, "value"),
		}
		output := rapid.String().Draw(t, "output")
		assert.False(t, EvaluateCondition(cond, output))
	})
}

func TestEvaluateConditionBareString(t *testing.T) {
	cond := &types.Condition{Match: "approved", HasMatch: true}

	assert.True(t, EvaluateCondition(cond, "request approved by reviewer"))
	assert.False(t, EvaluateCondition(cond, "request rejected"))

	assert.True(t, EvaluateCondition(cond, map[string]any{
		"verdict": "approved with remarks",
		"score":   0.9,
	}), "any string field of a structured output matches")
	assert.False(t, EvaluateCondition(cond, map[string]any{"verdict": "rejected"}))
	assert.False(t, EvaluateCondition(cond, 42), "non-string, non-map outputs never match")
}

func TestEvaluateConditionEquals(t *testing.T) {
	cond := &types.Condition{Type: types.ConditionEquals, Field: "route", Value: "billing"}

	assert.True(t, EvaluateCondition(cond, map[string]any{"route": "billing"}))
	assert.False(t, EvaluateCondition(cond, map[string]any{"route": "support"}))
	assert.False(t, EvaluateCondition(cond, map[string]any{"other": "billing"}), "missing field is false")
	assert.False(t, EvaluateCondition(cond, "billing"), "equals needs a structured output")
}

func TestEvaluateConditionContains(t *testing.T) {
	cond := &types.Condition{Type: types.ConditionContains, Field: "summary", Value: "refund"}

	assert.True(t, EvaluateCondition(cond, map[string]any{"summary": "customer wants a refund now"}))
	assert.False(t, EvaluateCondition(cond, map[string]any{"summary": "general question"}))
	assert.False(t, EvaluateCondition(cond, map[string]any{"summary": 12}))
}

func TestEvaluateConditionDefault(t *testing.T) {
	cond := &types.Condition{Type: types.ConditionDefault}
	assert.True(t, EvaluateCondition(cond, "anything"))
	assert.True(t, EvaluateCondition(cond, nil))
}
