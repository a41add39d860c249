package loader

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/rules"
	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

var (
	validPhases = map[types.Phase]bool{types.Before: true, types.After: true}
	validRoles  = map[types.Role]bool{types.Make: true, types.Via: true, types.Take: true}
)

// validate checks cross references and every effect, condition and op in
// defs. Warnings are logged; errors fail the load.
func validate(defs *state.Defs, log *slog.Logger) error {
	ve := &ValidationError{}

	registry := effects.NewRegistry()
	if err := effects.RegisterBuiltins(registry, defs); err != nil {
		return fmt.Errorf("registering effects: %w", err)
	}

	g := defs.Game
	if g.Title == "" {
		ve.errorf("Game.title is required")
	}
	if g.Player == "" {
		ve.errorf("Game.player is required")
	} else if def, ok := defs.Entities[g.Player]; !ok {
		ve.errorf("player %q is not defined", g.Player)
	} else if !state.HasCapability(def, types.CapPlayer) {
		ve.errorf("player %q is not a Player", g.Player)
	}

	if len(g.Enemies) == 0 {
		ve.errorf("Game.enemies must name at least one enemy")
	}
	for _, id := range g.Enemies {
		def, ok := defs.Entities[id]
		if !ok {
			ve.errorf("enemy %q is not defined", id)
		} else if !state.HasCapability(def, types.CapEnemy) {
			ve.errorf("enemy %q is not an Enemy", id)
		}
	}

	for _, id := range g.Equipment {
		def, ok := defs.Entities[id]
		switch {
		case !ok:
			ve.errorf("equipment %q is not defined", id)
		case !state.HasCapability(def, types.CapRelic) &&
			!state.HasCapability(def, types.CapOrgan) &&
			!state.HasCapability(def, types.CapPotion):
			ve.errorf("equipment %q is not a Relic, Organ or Potion", id)
		}
	}

	for _, id := range sortedKeys(defs.Entities) {
		validateEntity(defs.Entities[id], defs, registry, ve)
	}

	for _, id := range sortedKeys(defs.Actions) {
		a := defs.Actions[id]
		if a.Medium != "" {
			if _, ok := defs.Entities[a.Medium]; !ok {
				ve.errorf("action %q medium %q is not defined", id, a.Medium)
			}
		}
		if a.Target != "" && a.Target != "self" && a.Target != "enemy" {
			ve.errorf("action %q target must be \"self\" or \"enemy\", got %q", id, a.Target)
		}
		if a.Cost < 0 {
			ve.errorf("action %q has negative cost", id)
		}
		if a.Uses < 0 {
			ve.errorf("action %q has negative uses", id)
		}
		validateEffects("action "+id, a.Effects, defs, registry, ve)
	}

	for _, w := range ve.Warnings {
		log.Warn("content warning", "detail", w)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateEntity(def types.EntityDef, defs *state.Defs, registry *effects.Registry, ve *ValidationError) {
	where := "entity " + def.ID

	seen := map[string]bool{}
	for _, c := range def.Currents {
		if seen[c.Key] {
			ve.errorf("%s: current %q defined twice", where, c.Key)
		}
		seen[c.Key] = true
		bounds := []struct {
			name string
			b    types.BoundDef
		}{{"min", c.Min}, {"max", c.Max}, {"start", c.Start}}
		for _, nb := range bounds {
			if nb.b.Status == "" {
				continue
			}
			if _, ok := def.Statuses[nb.b.Status]; !ok {
				ve.errorf("%s: current %q %s follows status %q, which the entity does not have",
					where, c.Key, nb.name, nb.b.Status)
			}
		}
		if c.Min.Set && c.Max.Set && c.Min.Value > c.Max.Value {
			ve.errorf("%s: current %q min exceeds max", where, c.Key)
		}
	}

	for i, t := range def.Triggers {
		tw := fmt.Sprintf("%s trigger #%d", where, i+1)
		if !validPhases[t.When] {
			ve.errorf("%s: when must be \"before\" or \"after\", got %q", tw, t.When)
		}
		if !validRoles[t.How] {
			ve.errorf("%s: how must be \"make\", \"via\" or \"take\", got %q", tw, t.How)
		}
		if t.Event == "" {
			ve.errorf("%s: event is required", tw)
		}
		if err := rules.Validate(t); err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				ve.errorf("%s: %s", tw, line)
			}
		}
		for _, op := range t.Ops {
			if op.Type != "emit" {
				continue
			}
			if key, _ := op.Params["key"].(string); key != "" {
				warnUndefinedEmit(tw, key, defs, ve)
			}
		}
	}

	total := 0
	for _, b := range def.Behavior {
		if _, ok := defs.Actions[b.Action]; !ok {
			ve.errorf("%s: behavior action %q is not defined", where, b.Action)
		}
		if b.Weight < 0 {
			ve.errorf("%s: behavior %q has negative weight", where, b.Action)
		}
		total += b.Weight
	}
	if len(def.Behavior) > 0 && total == 0 {
		ve.errorf("%s: behavior weights sum to zero", where)
	}
	if state.HasCapability(def, types.CapEnemy) && len(def.Behavior) == 0 {
		ve.warnf("%s has no behavior and will only hesitate", where)
	}
}

func validateEffects(where string, units []types.EffectUnit, defs *state.Defs, registry *effects.Registry, ve *ValidationError) {
	for i, u := range units {
		if _, err := registry.Resolve(u); err != nil {
			ve.errorf("%s effect #%d: %v", where, i+1, err)
			continue
		}
		if on, ok := u.Params["on"].(string); ok && !validRole(on) {
			ve.errorf("%s effect #%d: on must be source, medium or target, got %q", where, i+1, on)
		}
		if u.Key == "emit" {
			key, _ := u.Params["key"].(string)
			warnUndefinedEmit(fmt.Sprintf("%s effect #%d", where, i+1), key, defs, ve)
		}
	}
}

func validRole(on string) bool {
	switch on {
	case "source", "medium", "target":
		return true
	}
	return false
}

// warnUndefinedEmit flags emits with no action template. They still
// dispatch as bare events that only triggers can answer.
func warnUndefinedEmit(where, key string, defs *state.Defs, ve *ValidationError) {
	if _, ok := defs.Actions[key]; !ok {
		ve.warnf("%s emits %q, which has no Action definition", where, key)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
