package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/engine/handle"
	"github.com/nathoo/rulecore/types"
)

var (
	ErrUnknownOp        = errors.New("unknown trigger op")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrUnknownSubject   = errors.New("unknown subject")
)

// Ops lists the known trigger op types and the params each requires.
var Ops = map[string][]string{
	"adjust":   {"effect", "param", "delta"},
	"scale":    {"effect", "param", "factor"},
	"cancel":   nil,
	"set_info": {"key", "value"},
	"emit":     {"key"},
	"say":      {"text"},
}

// Compile turns a trigger definition into a callback bound to its owner.
// Conditions are checked each time the trigger fires; ops run in order and
// report their errors to the runtime without stopping the rest.
func Compile(def types.TriggerDef, owner *entity.Entity, lib effects.Library) entity.TriggerFunc {
	conds, ops := def.Conditions, def.Ops
	return func(rt entity.Runtime, a *entity.Action, _ *types.EffectUnit, _ int) {
		env := Env{Owner: owner, Action: a}
		if !EvalAllConditions(conds, env) {
			return
		}
		for _, op := range ops {
			if err := apply(rt, env, op, lib); err != nil {
				rt.Report(err)
			}
		}
	}
}

func apply(rt entity.Runtime, env Env, op types.TriggerOp, lib effects.Library) error {
	a := env.Action
	switch op.Type {
	case "adjust":
		effect, _ := op.Params["effect"].(string)
		param, _ := op.Params["param"].(string)
		_, err := a.AdjustParam(effect, param, toFloat(op.Params["delta"]))
		return err

	case "scale":
		effect, _ := op.Params["effect"].(string)
		param, _ := op.Params["param"].(string)
		_, err := a.ScaleParam(effect, param, toFloat(op.Params["factor"]))
		return err

	case "cancel":
		// A late cancel reports itself through the action's runtime.
		a.Cancel()
		return nil

	case "set_info":
		key, _ := op.Params["key"].(string)
		return a.SetInfo(key, op.Params["value"])

	case "emit":
		id, _ := op.Params["key"].(string)
		from, _ := op.Params["from"].(string)
		to, _ := op.Params["to"].(string)
		key, units := effects.Lookup(lib, id)
		rt.Dispatch(entity.NewAction(key, pick(from, "owner", env), nil, pick(to, "target", env), units...))
		return nil

	case "say":
		text, _ := op.Params["text"].(string)
		rt.Say(interpolate(text, env))
		return nil

	default:
		return fmt.Errorf("%q: %w", op.Type, ErrUnknownOp)
	}
}

func interpolate(text string, env Env) string {
	var src, tgt *entity.Entity
	key := ""
	if env.Action != nil {
		src, tgt, key = env.Action.Source, env.Action.Target, env.Action.Key
	}
	r := strings.NewReplacer(
		"{owner}", env.Owner.String(),
		"{source}", src.String(),
		"{target}", tgt.String(),
		"{action}", key,
	)
	return r.Replace(text)
}

// Install compiles every definition and registers it on owner's trigger
// table. On error the triggers installed so far stay registered; their
// handles are returned with the error.
func Install(owner *entity.Entity, defs []types.TriggerDef, lib effects.Library) ([]*handle.Handle, error) {
	var hs []*handle.Handle
	for i, def := range defs {
		spec := entity.TriggerSpec{
			When:  def.When,
			How:   def.How,
			Event: def.Event,
			Level: def.Level,
			Call:  Compile(def, owner, lib),
			Only:  def.Only,
		}
		var h *handle.Handle
		var err error
		if def.Important != "" {
			h, err = owner.Triggers().RegisterImportant(def.Important, spec)
		} else {
			h, err = owner.Triggers().Register(spec)
		}
		if err != nil {
			return hs, fmt.Errorf("%s trigger %d: %w", owner, i, err)
		}
		hs = append(hs, h)
	}
	return hs, nil
}

// Validate checks a trigger definition's conditions and ops against the known
// types. Problems are joined.
func Validate(def types.TriggerDef) error {
	var errs []error
	for _, c := range def.Conditions {
		errs = append(errs, validateCondition(c))
	}
	for _, op := range def.Ops {
		required, ok := Ops[op.Type]
		if !ok {
			errs = append(errs, fmt.Errorf("%q: %w", op.Type, ErrUnknownOp))
			continue
		}
		for _, p := range required {
			if _, ok := op.Params[p]; !ok {
				errs = append(errs, fmt.Errorf("op %s.%s: %w", op.Type, p, effects.ErrMissingParam))
			}
		}
		for _, p := range []string{"from", "to"} {
			if name, ok := op.Params[p].(string); ok && !Subjects[name] {
				errs = append(errs, fmt.Errorf("op %s %s=%q: %w", op.Type, p, name, ErrUnknownSubject))
			}
		}
	}
	return errors.Join(errs...)
}

func validateCondition(c types.Condition) error {
	if !Conditions[c.Type] {
		return fmt.Errorf("%q: %w", c.Type, ErrUnknownCondition)
	}
	if name, ok := c.Params["of"].(string); ok && !Subjects[name] {
		return fmt.Errorf("condition %s of=%q: %w", c.Type, name, ErrUnknownSubject)
	}
	if c.Type == "not" && c.Inner != nil {
		return validateCondition(*c.Inner)
	}
	return nil
}
