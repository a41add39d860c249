// Package rules compiles content-defined triggers (conditions plus data ops)
// into trigger callbacks and installs them on entities.
package rules

import (
	"reflect"

	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/types"
)

// Env is what a condition is evaluated against: the entity owning the
// trigger and the action that fired it.
type Env struct {
	Owner  *entity.Entity
	Action *entity.Action
}

// Conditions lists the known condition types.
var Conditions = map[string]bool{
	"status_at_least": true,
	"status_below":    true,
	"current_at_most": true,
	"current_above":   true,
	"has_capability":  true,
	"info_is":         true,
	"is_cancelled":    true,
	"is_owner":        true,
	"not":             true,
}

// EvalCondition evaluates a single condition.
func EvalCondition(c types.Condition, env Env) bool {
	switch c.Type {
	case "status_at_least":
		e := subject(c.Params, env)
		key, _ := c.Params["status"].(string)
		v, ok := statusOf(e, key)
		return ok && v >= toFloat(c.Params["value"])

	case "status_below":
		e := subject(c.Params, env)
		key, _ := c.Params["status"].(string)
		v, _ := statusOf(e, key)
		return v < toFloat(c.Params["value"])

	case "current_at_most":
		e := subject(c.Params, env)
		key, _ := c.Params["current"].(string)
		v, ok := currentOf(e, key)
		return ok && v <= toFloat(c.Params["value"])

	case "current_above":
		e := subject(c.Params, env)
		key, _ := c.Params["current"].(string)
		v, ok := currentOf(e, key)
		return ok && v > toFloat(c.Params["value"])

	case "has_capability":
		e := subject(c.Params, env)
		capability, _ := c.Params["capability"].(string)
		return e != nil && e.Has(types.Capability(capability))

	case "info_is":
		if env.Action == nil {
			return false
		}
		key, _ := c.Params["key"].(string)
		actual, ok := env.Action.Info(key)
		expected := c.Params["value"]
		if !ok {
			return expected == nil
		}
		if a, ok := entity.Number(actual); ok {
			if b, ok := entity.Number(expected); ok {
				return a == b
			}
		}
		// Lua tables arrive as []any or map[string]any, which == cannot compare.
		return reflect.DeepEqual(actual, expected)

	case "is_cancelled":
		return env.Action != nil && env.Action.Cancelled()

	case "is_owner":
		e := subject(c.Params, env)
		return e != nil && e == env.Owner

	case "not":
		if c.Inner == nil {
			return true
		}
		return !EvalCondition(*c.Inner, env)

	default:
		return false
	}
}

// EvalAllConditions returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalAllConditions(conditions []types.Condition, env Env) bool {
	for _, c := range conditions {
		if !EvalCondition(c, env) {
			return false
		}
	}
	return true
}

func statusOf(e *entity.Entity, key string) (float64, bool) {
	if e == nil {
		return 0, false
	}
	return e.StatusValue(key)
}

func currentOf(e *entity.Entity, key string) (float64, bool) {
	if e == nil {
		return 0, false
	}
	return e.CurrentValue(key)
}

// toFloat converts a param to float64; non-numbers read as zero.
func toFloat(v any) float64 {
	f, _ := entity.Number(v)
	return f
}
