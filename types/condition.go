package types

import (
	"encoding/json"
	"fmt"
)

// Condition kinds understood by the conditional executor.
const (
	ConditionEquals   = "equals"
	ConditionContains = "contains"
	ConditionDefault  = "default"
)

// Condition guards a conditional route. Three stored forms are accepted:
//
//   - absent (nil *Condition): always true
//   - a bare JSON string: true when the string occurs as a substring of the
//     step output (or of any string field of a structured output)
//   - an object {type, field, value}: equals / contains / default
//
// The bare-string form is kept on Match with HasMatch set, so an empty
// match string stays distinguishable from the object form.
type Condition struct {
	Match    string `json:"-"`
	HasMatch bool   `json:"-"`

	Type  string `json:"type,omitempty"`
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
}

// conditionWire is the object form of Condition on the wire.
type conditionWire struct {
	Type  string `json:"type,omitempty"`
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
}

// UnmarshalJSON accepts the bare-string and object condition forms.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Condition{Match: s, HasMatch: true}
		return nil
	}
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("condition must be a string or an object: %w", err)
	}
	*c = Condition{Type: w.Type, Field: w.Field, Value: w.Value}
	return nil
}

// MarshalJSON writes the condition back in its stored form.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.HasMatch {
		return json.Marshal(c.Match)
	}
	return json.Marshal(conditionWire{Type: c.Type, Field: c.Field, Value: c.Value})
}
