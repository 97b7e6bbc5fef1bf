package engine

import (
	"reflect"
	"strings"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

// EvaluateCondition decides whether a route's condition holds against a
// step output.
//
//   - nil condition: always true
//   - bare string: true iff it is a substring of the output, or of any
//     string field when the output is structured
//   - {type: "equals", field, value}: output[field] equals value; a missing
//     field is false
//   - {type: "contains", field, value}: substring match on output[field]
//   - {type: "default"}: always true
//   - any other type: false
func EvaluateCondition(cond *types.Condition, output any) bool {
	if cond == nil {
		return true
	}
	if cond.HasMatch {
		return outputContains(output, cond.Match)
	}

	switch cond.Type {
	case types.ConditionEquals:
		got, ok := fieldValue(output, cond.Field)
		if !ok {
			return false
		}
		return reflect.DeepEqual(got, cond.Value)
	case types.ConditionContains:
		got, ok := fieldValue(output, cond.Field)
		if !ok {
			return false
		}
		gotStr, gotOK := got.(string)
		wantStr, wantOK := cond.Value.(string)
		return gotOK && wantOK && strings.Contains(gotStr, wantStr)
	case types.ConditionDefault:
		return true
	}
	return false
}

// outputContains reports whether match occurs as a substring of output when
// it is a string, or of any top-level string field when it is a map.
func outputContains(output any, match string) bool {
	switch v := output.(type) {
	case string:
		return strings.Contains(v, match)
	case map[string]any:
		for _, field := range v {
			if s, ok := field.(string); ok && strings.Contains(s, match) {
				return true
			}
		}
	}
	return false
}

func fieldValue(output any, field string) (any, bool) {
	m, ok := output.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}
