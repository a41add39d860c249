package engine

import (
	"fmt"

	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/types"
)

// Turn boundary event keys. Content may define actions with these ids to
// give the boundaries effects; triggers can listen on them either way.
const (
	TurnStart = "turn_start"
	TurnEnd   = "turn_end"
)

// endTurn closes the player's turn, lets every living enemy act, and opens
// the next player turn.
func (e *Engine) endTurn(result *types.Result) {
	e.run(result, e.turnAction(TurnEnd, e.Player))
	if e.Over() {
		return
	}

	for _, en := range e.Enemies {
		if en.Flag(effects.Dead) {
			continue
		}
		e.run(result, e.turnAction(TurnStart, en))
		if e.Over() {
			return
		}
		e.enemyTurn(result, en)
		if e.Over() {
			return
		}
		e.run(result, e.turnAction(TurnEnd, en))
		if e.Over() {
			return
		}
	}

	e.State.Turn++
	e.run(result, e.turnAction(TurnStart, e.Player))
}

// turnAction builds a turn boundary action for who, using the content
// template when one exists.
func (e *Engine) turnAction(id string, who *entity.Entity) *entity.Action {
	key, units := effects.Lookup(e.Defs, id)
	return entity.NewAction(key, who, nil, who, units...)
}

// enemyTurn selects an action for the enemy based on weighted behavior and
// dispatches it.
func (e *Engine) enemyTurn(result *types.Result, en *entity.Entity) {
	id := e.EnemyIntent(en)
	if id == "" {
		result.Output = append(result.Output, fmt.Sprintf("%s hesitates.", en))
		return
	}

	def, ok := e.Defs.Actions[id]
	if !ok {
		e.log.Warn("behavior names undefined action", "enemy", en.DefID(), "action", id)
		result.Output = append(result.Output, fmt.Sprintf("%s hesitates.", en))
		return
	}

	target := e.Player
	if def.Target == "self" {
		target = en
	}
	key, units, _ := e.Defs.Template(id)
	e.run(result, entity.NewAction(key, en, e.media[def.Medium], target, units...))
}

// EnemyIntent picks the id of the enemy's next action from its behavior
// table. It returns "" when the enemy has no behavior.
func (e *Engine) EnemyIntent(en *entity.Entity) string {
	def, ok := e.Defs.Entities[en.DefID()]
	if !ok || len(def.Behavior) == 0 {
		return ""
	}

	weights := make([]int, len(def.Behavior))
	for i, b := range def.Behavior {
		weights[i] = b.Weight
	}

	idx := e.RNG.WeightedSelect(weights)
	return def.Behavior[idx].Action
}
