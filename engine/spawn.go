package engine

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/engine/rules"
	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/engine/status"
	"github.com/nathoo/rulecore/types"
)

// Energy is the current actions spend from.
const Energy = "energy"

// spawnAll creates every battle participant in a fixed order: player,
// enemies in game order, equipment, then cards.
func (e *Engine) spawnAll() error {
	g := e.Defs.Game

	pdef, ok := e.Defs.Entities[g.Player]
	if !ok || g.Player == "" {
		return fmt.Errorf("%q: %w", g.Player, ErrNoPlayer)
	}
	p, err := e.spawn(pdef, pdef.Label, g.Player)
	if err != nil {
		return err
	}
	e.Player = p

	if len(g.Enemies) == 0 {
		return ErrNoEnemies
	}
	count := map[string]int{}
	for _, id := range g.Enemies {
		count[id]++
	}
	seen := map[string]int{}
	for _, id := range g.Enemies {
		def, ok := e.Defs.Entities[id]
		if !ok {
			return fmt.Errorf("enemy %q: %w", id, ErrUnknownDef)
		}
		label, handle := def.Label, id
		if count[id] > 1 {
			seen[id]++
			label = fmt.Sprintf("%s %d", labelOf(def), seen[id])
			handle = id + "_" + strconv.Itoa(seen[id])
		}
		en, err := e.spawn(def, label, handle)
		if err != nil {
			return err
		}
		e.Enemies = append(e.Enemies, en)
	}

	for _, id := range g.Equipment {
		if err := e.equip(id); err != nil {
			return err
		}
	}

	for _, id := range e.Defs.EntitiesWith(types.CapCard) {
		def := e.Defs.Entities[id]
		en, err := e.spawn(def, def.Label, id)
		if err != nil {
			return err
		}
		e.media[id] = en
	}
	return nil
}

// spawn creates one entity from its definition.
func (e *Engine) spawn(def types.EntityDef, label, handle string) (*entity.Entity, error) {
	id, err := uuid.NewRandomFromReader(e.ids)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", def.ID, err)
	}
	if label == "" {
		label = labelOf(def)
	}
	en := entity.New(id, def.ID, label, def.Capabilities...)

	keys := make([]string, 0, len(def.Statuses))
	for k := range def.Statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		en.AddStatus(k, def.Statuses[k])
	}

	for _, cd := range def.Currents {
		c := entity.NewCurrent(cd.Key, 0, bound(cd.Min), bound(cd.Max))
		c.AllowOverMin = cd.AllowOverMin
		c.AllowOverMax = cd.AllowOverMax
		if err := en.AddCurrent(c); err != nil {
			return nil, err
		}
		start, err := e.startValue(en, cd)
		if err != nil {
			return nil, err
		}
		// The start is written before the boundary callback is attached, so
		// an entity spawned at its minimum does not die on arrival.
		if _, err := en.ChangeCurrent(cd.Key, start, nil); err != nil {
			return nil, err
		}
		if cd.Key == effects.Health {
			c.OnReachMin = e.onHealthMin
		}
	}

	if _, err := rules.Install(en, def.Triggers, e.Defs); err != nil {
		return nil, err
	}

	e.spawned = append(e.spawned, en)
	e.handles[en] = handle
	e.log.Debug("spawned", "def", def.ID, "label", en.String(), "id", id.String())
	return en, nil
}

// startValue resolves a current's starting value: an explicit start, else
// its upper bound, else zero.
func (e *Engine) startValue(en *entity.Entity, cd types.CurrentDef) (float64, error) {
	if cd.Start.Set || cd.Start.Status != "" {
		v, _, err := bound(cd.Start).Resolve(en)
		return v, err
	}
	v, ok, err := bound(cd.Max).Resolve(en)
	if err != nil || !ok {
		return 0, err
	}
	return v, nil
}

// equip folds a relic or organ into the player: its statuses become base
// layer modifiers and its triggers are installed on the player, scoped to
// the item's id. Potions are spawned as media instead.
func (e *Engine) equip(id string) error {
	def, ok := e.Defs.Entities[id]
	if !ok {
		return fmt.Errorf("equipment %q: %w", id, ErrUnknownDef)
	}

	if state.HasCapability(def, types.CapPotion) {
		en, err := e.spawn(def, def.Label, id)
		if err != nil {
			return err
		}
		e.media[id] = en
		return nil
	}
	if !state.HasCapability(def, types.CapRelic) && !state.HasCapability(def, types.CapOrgan) {
		return fmt.Errorf("%q: %w", id, ErrNotEquipment)
	}

	keys := make([]string, 0, len(def.Statuses))
	for k := range def.Statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m := status.Modifier{Kind: status.Add, Layer: status.LayerBase, Value: def.Statuses[k]}
		if _, err := e.Player.AddModifier(k, m); err != nil {
			return fmt.Errorf("equip %s: %w", id, err)
		}
	}

	triggers := make([]types.TriggerDef, len(def.Triggers))
	for i, t := range def.Triggers {
		if t.Only == "" {
			t.Only = id
		}
		triggers[i] = t
	}
	if _, err := rules.Install(e.Player, triggers, e.Defs); err != nil {
		return fmt.Errorf("equip %s: %w", id, err)
	}
	e.log.Debug("equipped", "item", id, "statuses", len(keys), "triggers", len(triggers))
	return nil
}

// onHealthMin dispatches a death action at the entity when its health hits
// the minimum. The death action is nested under whatever caused the hit, so
// content triggers can cancel it.
func (e *Engine) onHealthMin(cause *entity.Action, en *entity.Entity, _ *entity.Current) {
	if cause == nil || cause.Runtime() == nil {
		en.AddStatus(effects.Dead, 1)
		e.log.Info("death outside dispatch", "entity", en.String())
		return
	}
	key, units := effects.Lookup(e.Defs, "death")
	if len(units) == 0 {
		units = []types.EffectUnit{{Key: "death"}}
	}
	cause.Runtime().Dispatch(entity.NewAction(key, cause.Source, nil, en, units...))
}

func bound(b types.BoundDef) entity.Bound {
	switch {
	case b.Status != "":
		return entity.StatusRef(b.Status)
	case b.Set:
		return entity.Fixed(b.Value)
	default:
		return entity.Unbounded()
	}
}

func labelOf(def types.EntityDef) string {
	if def.Label != "" {
		return def.Label
	}
	return def.ID
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
