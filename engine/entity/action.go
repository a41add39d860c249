package entity

import (
	"fmt"
	"maps"

	"github.com/nathoo/rulecore/types"
)

// Stage is how far an action has progressed through dispatch.
type Stage int8

const (
	StagePending Stage = iota
	StageBefore
	StageExecute
	StageAfter
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageBefore:
		return "before"
	case StageExecute:
		return "execute"
	case StageAfter:
		return "after"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Action is one dispatched unit of causality. Once done it is sealed: only
// its side-effect list may still change.
type Action struct {
	Key    string
	Source *Entity
	Medium *Entity
	Target *Entity

	units     []types.EffectUnit
	info      map[string]any
	cancelled bool
	parent    *Action
	stage     Stage
	side      []func()
	rt        Runtime
}

// NewAction builds a pending action. Unit params are copied so content
// templates are never mutated by triggers.
func NewAction(key string, source, medium, target *Entity, units ...types.EffectUnit) *Action {
	a := &Action{
		Key:    key,
		Source: source,
		Medium: medium,
		Target: target,
		info:   map[string]any{},
	}
	for _, u := range units {
		a.units = append(a.units, types.EffectUnit{Key: u.Key, Params: maps.Clone(u.Params)})
	}
	return a
}

func (a *Action) String() string {
	return fmt.Sprintf("%s(%s→%s)", a.Key, a.Source, a.Target)
}

// Stage returns the dispatch stage.
func (a *Action) Stage() Stage { return a.stage }

// Advance moves the action to the given stage. Only the dispatcher calls it.
func (a *Action) Advance(s Stage) { a.stage = s }

// Bind attaches the runtime dispatching the action. Only the dispatcher
// calls it.
func (a *Action) Bind(rt Runtime) { a.rt = rt }

// Runtime returns the runtime the action is being dispatched on, or nil
// before dispatch.
func (a *Action) Runtime() Runtime { return a.rt }

// Parent returns the action whose dispatch spawned this one, if any.
func (a *Action) Parent() *Action { return a.parent }

// SetParent links a pending action to the action that caused it.
func (a *Action) SetParent(p *Action) error {
	if a.stage != StagePending {
		return ErrSealed
	}
	a.parent = p
	return nil
}

// Depth counts parent links up to the root action.
func (a *Action) Depth() int {
	d := 0
	for p := a.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Cancel stops the action's effect units from running. It is only legal
// while the action is in its before phase; a late cancel changes nothing and
// is also reported to the dispatching runtime.
func (a *Action) Cancel() error {
	if a.stage != StageBefore {
		err := fmt.Errorf("%s in %s: %w", a.Key, a.stage, ErrCancelOutsideBefore)
		if a.rt != nil {
			a.rt.Report(err)
		}
		return err
	}
	a.cancelled = true
	return nil
}

// Cancelled reports whether a before trigger cancelled the action.
func (a *Action) Cancelled() bool { return a.cancelled }

// Info returns a value from the action's metadata bag.
func (a *Action) Info(key string) (any, bool) {
	v, ok := a.info[key]
	return v, ok
}

// SetInfo stores a metadata value.
func (a *Action) SetInfo(key string, v any) error {
	if a.stage == StageDone {
		return ErrSealed
	}
	a.info[key] = v
	return nil
}

// Len returns the number of effect units.
func (a *Action) Len() int { return len(a.units) }

// Unit returns a copy of the i-th effect unit.
func (a *Action) Unit(i int) (types.EffectUnit, bool) {
	if i < 0 || i >= len(a.units) {
		return types.EffectUnit{}, false
	}
	u := a.units[i]
	return types.EffectUnit{Key: u.Key, Params: maps.Clone(u.Params)}, true
}

// Units returns copies of all effect units in order.
func (a *Action) Units() []types.EffectUnit {
	out := make([]types.EffectUnit, 0, len(a.units))
	for i := range a.units {
		u, _ := a.Unit(i)
		out = append(out, u)
	}
	return out
}

// SetParam overwrites one param of the i-th effect unit.
func (a *Action) SetParam(i int, key string, v any) error {
	if a.stage == StageDone {
		return ErrSealed
	}
	if i < 0 || i >= len(a.units) {
		return fmt.Errorf("%s unit %d: %w", a.Key, i, ErrNoUnit)
	}
	if a.units[i].Params == nil {
		a.units[i].Params = map[string]any{}
	}
	a.units[i].Params[key] = v
	return nil
}

// AdjustParam adds delta to a numeric param of every unit with the given
// effect key. A missing param counts as zero. Returns the number of units
// changed.
func (a *Action) AdjustParam(effectKey, param string, delta float64) (int, error) {
	return a.mapParam(effectKey, param, func(v float64) float64 { return v + delta })
}

// ScaleParam multiplies a numeric param of every unit with the given key.
func (a *Action) ScaleParam(effectKey, param string, factor float64) (int, error) {
	return a.mapParam(effectKey, param, func(v float64) float64 { return v * factor })
}

func (a *Action) mapParam(effectKey, param string, fn func(float64) float64) (int, error) {
	if a.stage == StageDone {
		return 0, ErrSealed
	}
	n := 0
	for i := range a.units {
		if a.units[i].Key != effectKey {
			continue
		}
		cur := 0.0
		if raw, ok := a.units[i].Params[param]; ok {
			v, ok := Number(raw)
			if !ok {
				return n, fmt.Errorf("%s.%s: %w", effectKey, param, ErrNotNumber)
			}
			cur = v
		}
		if err := a.SetParam(i, param, fn(cur)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// CollectSideEffect registers a cleanup to run when the owning scope ends.
func (a *Action) CollectSideEffect(fn func()) {
	if fn != nil {
		a.side = append(a.side, fn)
	}
}

// PendingSideEffects returns how many cleanups have not run yet.
func (a *Action) PendingSideEffects() int { return len(a.side) }

// DrainSideEffects runs every collected cleanup once, in collection order.
// Cleanups collected while draining run in the same drain.
func (a *Action) DrainSideEffects() int {
	n := 0
	for len(a.side) > 0 {
		fn := a.side[0]
		a.side = a.side[1:]
		fn()
		n++
	}
	return n
}
