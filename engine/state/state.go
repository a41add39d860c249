// Package state holds the immutable content definitions a battle is built
// from, and the bookkeeping that changes as it plays out.
package state

import (
	"sort"

	"github.com/nathoo/rulecore/types"
)

// Defs holds the immutable game definitions loaded from Lua.
type Defs struct {
	Game     types.GameDef
	Entities map[string]types.EntityDef
	Actions  map[string]types.ActionDef
}

// NewState creates fresh bookkeeping for a battle seeded with seed.
func NewState(seed int64) *types.State {
	return &types.State{
		Seed:       seed,
		CommandLog: []string{},
	}
}

// Template returns the event key and a copy of the effect units of an action
// definition. Defs is the effect library emit resolves through.
func (d *Defs) Template(id string) (string, []types.EffectUnit, bool) {
	def, ok := d.Actions[id]
	if !ok {
		return "", nil, false
	}
	return ActionKey(def), CopyUnits(def.Effects), true
}

// ActionKey is the event key an action dispatches under.
func ActionKey(def types.ActionDef) string {
	if def.Key != "" {
		return def.Key
	}
	return def.ID
}

// CopyUnits deep-copies effect units so a dispatched action never aliases
// the definition's param maps.
func CopyUnits(units []types.EffectUnit) []types.EffectUnit {
	if units == nil {
		return nil
	}
	out := make([]types.EffectUnit, len(units))
	for i, u := range units {
		params := make(map[string]any, len(u.Params))
		for k, v := range u.Params {
			params[k] = v
		}
		out[i] = types.EffectUnit{Key: u.Key, Params: params}
	}
	return out
}

// HasCapability reports whether def carries c.
func HasCapability(def types.EntityDef, c types.Capability) bool {
	for _, have := range def.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// EntitiesWith returns the ids of every entity definition carrying c, sorted
// by SourceOrder then id.
func (d *Defs) EntitiesWith(c types.Capability) []string {
	var ids []string
	for id, def := range d.Entities {
		if HasCapability(def, c) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := d.Entities[ids[i]], d.Entities[ids[j]]
		if a.SourceOrder != b.SourceOrder {
			return a.SourceOrder < b.SourceOrder
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Playable returns the ids of actions the player can play: those whose
// medium is a card or potion. Sorted by id.
func (d *Defs) Playable() []string {
	var ids []string
	for id, def := range d.Actions {
		med, ok := d.Entities[def.Medium]
		if !ok {
			continue
		}
		if HasCapability(med, types.CapCard) || HasCapability(med, types.CapPotion) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
