package effects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/engine/status"
	"github.com/nathoo/rulecore/types"
)

// Well-known keys shared by the builtins and the engine.
const (
	Health = "health"
	Dead   = "dead"
)

// ErrBadChoice is returned when the chooser answers with an out-of-range pick.
var ErrBadChoice = errors.New("choice out of range")

// Library resolves content action templates for emit: the event key the
// action dispatches under and its effect units. A nil Library makes emit
// dispatch bare actions keyed by the requested id.
type Library interface {
	Template(id string) (key string, units []types.EffectUnit, ok bool)
}

// RegisterBuiltins installs the standard effect set on r.
func RegisterBuiltins(r *Registry, lib Library) error {
	return errors.Join(
		r.Register("damage", Damage, "value"),
		r.Register("heal", Heal, "value"),
		r.Register("gain", Gain, "current", "value"),
		r.Register("set_current", SetCurrent, "current", "value"),
		r.Register("modify", Modify, "status", "value"),
		r.Register("say", Say, "text"),
		r.Register("emit", emitWith(lib), "key"),
		r.Register("death", Death),
		r.Register("revive", Revive),
		r.Register("choose", Choose, "options"),
	)
}

func number(u types.EffectUnit, key string) (float64, error) {
	v, ok := Float(u, key)
	if !ok {
		return 0, fmt.Errorf("%s.%s: %w", u.Key, key, entity.ErrNotNumber)
	}
	return v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Damage lowers the participant's health. Zero or negative damage, and
// damage on a dead entity, do nothing.
func Damage(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	target, err := Participant(a, u)
	if err != nil {
		return err
	}
	v, err := number(u, "value")
	if err != nil {
		return err
	}
	if v <= 0 {
		rt.Logger().Info("damage absorbed", "action", a.Key, "target", target.String())
		return nil
	}
	if target.Flag(Dead) {
		rt.Logger().Info("damage on dead entity", "target", target.String())
		return nil
	}

	rt.Say(fmt.Sprintf("%s takes %s damage.", target, formatNumber(v)))
	_, err = target.AddToCurrent(Health, -v, a)
	return err
}

// Heal raises the participant's health.
func Heal(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	target, err := Participant(a, u)
	if err != nil {
		return err
	}
	v, err := number(u, "value")
	if err != nil {
		return err
	}
	if v <= 0 || target.Flag(Dead) {
		return nil
	}

	before, _ := target.CurrentValue(Health)
	after, err := target.AddToCurrent(Health, v, a)
	if err != nil {
		return err
	}
	if after == before {
		rt.Logger().Info("heal at max", "target", target.String())
		return nil
	}
	rt.Say(fmt.Sprintf("%s heals %s.", target, formatNumber(after-before)))
	return nil
}

// Gain changes any current by a delta.
func Gain(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	target, err := Participant(a, u)
	if err != nil {
		return err
	}
	key, _ := String(u, "current")
	v, err := number(u, "value")
	if err != nil {
		return err
	}
	got, err := target.AddToCurrent(key, v, a)
	rt.Logger().Debug("gain", "target", target.String(), "current", key, "delta", v, "now", got)
	return err
}

// SetCurrent writes a current directly, still clamped by its bounds.
func SetCurrent(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	target, err := Participant(a, u)
	if err != nil {
		return err
	}
	key, _ := String(u, "current")
	v, err := number(u, "value")
	if err != nil {
		return err
	}
	_, err = target.ChangeCurrent(key, v, a)
	return err
}

// Modify adds a status modifier to the participant. The modifier lives until
// the owning scope drains the action's side effects, unless "permanent" is
// set, in which case the status base changes instead.
func Modify(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	target, err := Participant(a, u)
	if err != nil {
		return err
	}
	key, _ := String(u, "status")
	v, err := number(u, "value")
	if err != nil {
		return err
	}

	if perm, _ := u.Params["permanent"].(bool); perm {
		s, ok := target.Status(key)
		if !ok {
			s = target.AddStatus(key, 0)
		}
		s.SetBase(s.BaseValue() + v)
		return nil
	}

	m := status.Modifier{Kind: status.Add, Value: v}
	if a.Source != nil {
		m.Source = a.Source.ID()
	}
	if kind, _ := String(u, "kind"); kind == "mul" {
		m.Kind = status.Mul
	}
	if mode, _ := String(u, "mode"); mode == "snapshot" {
		m.Mode = status.Snapshot
	}
	if layer, _ := String(u, "layer"); layer == "base" {
		m.Layer = status.LayerBase
	} else {
		m.Layer = status.LayerCurrent
	}

	h, err := target.AddModifier(key, m)
	if err != nil {
		return err
	}
	a.CollectSideEffect(func() { h.Release() })
	return nil
}

// Say writes a line to the step output. {source}, {medium}, {target} and
// {action} are replaced with the action's participants.
func Say(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	text, _ := String(u, "text")
	rt.Say(interpolate(text, a))
	return nil
}

func interpolate(text string, a *entity.Action) string {
	r := strings.NewReplacer(
		"{source}", a.Source.String(),
		"{medium}", a.Medium.String(),
		"{target}", a.Target.String(),
		"{action}", a.Key,
	)
	return r.Replace(text)
}

func emitWith(lib Library) Handler {
	return func(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
		return emit(rt, a, u, lib)
	}
}

// emit dispatches a nested action. With "swap" the source and target trade
// places, so a take trigger can answer its attacker.
func emit(rt entity.Runtime, a *entity.Action, u types.EffectUnit, lib Library) error {
	id, _ := String(u, "key")
	src, tgt := a.Source, a.Target
	if swap, _ := u.Params["swap"].(bool); swap {
		src, tgt = tgt, src
	}

	key, units := Lookup(lib, id)
	child := entity.NewAction(key, src, a.Medium, tgt, units...)
	for k, v := range u.Params {
		if strings.HasPrefix(k, "info.") {
			child.SetInfo(strings.TrimPrefix(k, "info."), v)
		}
	}
	rt.Dispatch(child)
	return nil
}

// Lookup resolves id through lib, falling back to a bare action keyed id.
func Lookup(lib Library, id string) (string, []types.EffectUnit) {
	if lib != nil {
		if key, units, ok := lib.Template(id); ok {
			return key, units
		}
	}
	return id, nil
}

// Death marks the participant dead. Killing a dead entity is not an error.
func Death(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	target, err := Participant(a, u)
	if err != nil {
		return err
	}
	if target.Flag(Dead) {
		rt.Logger().Info("already dead", "target", target.String())
		return nil
	}
	target.AddStatus(Dead, 1)
	rt.Say(fmt.Sprintf("%s dies.", target))
	return nil
}

// Revive clears the dead flag and restores health to "value" (default 1),
// never lower than one above the health minimum.
func Revive(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	target, err := Participant(a, u)
	if err != nil {
		return err
	}
	if !target.Flag(Dead) {
		rt.Logger().Info("revive on living entity", "target", target.String())
		return nil
	}
	v := 1.0
	if f, ok := Float(u, "value"); ok {
		v = f
	}
	// A revived entity must stand above its health floor, or it would be
	// alive at the bound that kills it.
	floor := 1.0
	if c, ok := target.Current(Health); ok {
		if lo, ok, err := c.Min.Resolve(target); err == nil && ok {
			floor = lo + 1
		}
	}
	if v < floor {
		rt.Logger().Info("revive value raised to floor", "target", target.String(), "value", v, "floor", floor)
		v = floor
	}
	target.AddStatus(Dead, 0)
	rt.Say(fmt.Sprintf("%s rises again.", target))
	_, err = target.ChangeCurrent(Health, v, a)
	return err
}

// Choose asks the player to pick among "options" and stores the picked
// indexes under the "picks" info key and the picked labels under "chosen".
func Choose(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error {
	opts := Strings(u, "options")
	count := 1
	if n, ok := Float(u, "count"); ok && n > 0 {
		count = int(n)
	}
	text, _ := String(u, "text")

	ans, err := rt.Choose(types.Prompt{Kind: "choose", Text: text, Options: opts, Count: count})
	if err != nil {
		return err
	}
	if len(ans.Picks) > count {
		return fmt.Errorf("%d picks for %d: %w", len(ans.Picks), count, ErrBadChoice)
	}
	chosen := make([]string, 0, len(ans.Picks))
	for _, p := range ans.Picks {
		if p < 0 || p >= len(opts) {
			return fmt.Errorf("pick %d of %d: %w", p, len(opts), ErrBadChoice)
		}
		chosen = append(chosen, opts[p])
	}
	if err := a.SetInfo("picks", ans.Picks); err != nil {
		return err
	}
	return a.SetInfo("chosen", chosen)
}
