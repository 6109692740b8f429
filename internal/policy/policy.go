// Package policy provides declarative rule policies applied to events of a
// given data type, with flat-file persistence and HTTP management handlers.
package policy

import (
	"fmt"
	"strconv"

	"phalanx/internal/schema"
)

// Supported rule operators. The set is deliberately small; extending it means
// extending Rule.Matches and Validate together.
const (
	OpGreater = ">"
	OpLess    = "<"
	OpEqual   = "=="
)

// Rule is one {field, operator, value} triple. Rules within a policy are
// evaluated independently: any matching rule violates the policy.
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Policy is a named rule set applied to events whose event_type matches
// DataType.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DataType    string `json:"data_type"`
	Rules       []Rule `json:"rules"`
}

// Validate validates the policy definition.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("policy id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.DataType == "" {
		return fmt.Errorf("policy data_type is required")
	}
	if !schema.ValidateEventType(p.DataType) {
		return fmt.Errorf("invalid data_type: %q", p.DataType)
	}
	for i, r := range p.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// Validate validates a single rule.
func (r *Rule) Validate() error {
	if r.Field == "" {
		return fmt.Errorf("field is required")
	}
	switch r.Operator {
	case OpGreater, OpLess, OpEqual:
	default:
		return fmt.Errorf("invalid operator: %q", r.Operator)
	}
	if r.Value == nil {
		return fmt.Errorf("value is required")
	}
	return nil
}

// Matches evaluates the rule against one payload value. Ordering operators
// on non-numeric operands fail closed: the rule is treated as not applicable
// rather than raising, so one malformed rule cannot sink an evaluation.
func (r *Rule) Matches(eventValue any) bool {
	switch r.Operator {
	case OpGreater:
		a, okA := toFloat64(eventValue)
		b, okB := toFloat64(r.Value)
		return okA && okB && a > b
	case OpLess:
		a, okA := toFloat64(eventValue)
		b, okB := toFloat64(r.Value)
		return okA && okB && a < b
	case OpEqual:
		if a, okA := toFloat64(eventValue); okA {
			if b, okB := toFloat64(r.Value); okB {
				return a == b
			}
		}
		return fmt.Sprintf("%v", eventValue) == fmt.Sprintf("%v", r.Value)
	}
	return false
}

// toFloat64 coerces JSON scalars to a comparable number.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
