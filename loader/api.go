package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/rulecore/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerConditionHelpers(L)
	registerEffectHelpers(L)
	registerOpHelpers(L)
}

// entityKinds maps each curried entity constructor to the capability it
// grants.
var entityKinds = map[string]types.Capability{
	"Player": types.CapPlayer,
	"Enemy":  types.CapEnemy,
	"Card":   types.CapCard,
	"Organ":  types.CapOrgan,
	"Relic":  types.CapRelic,
	"Potion": types.CapPotion,
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", player = "...", enemies = {...}, ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.game = tbl
		return 0
	}))

	// Player "id" { ... }, Enemy "id" { ... }, etc. Curried: the first call
	// takes the id and returns a function that takes the table.
	for name, kind := range entityKinds {
		kind := kind
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			id := L.CheckString(1)
			L.Push(L.NewFunction(func(L *lua.LState) int {
				tbl := L.CheckTable(1)
				coll.entities = append(coll.entities, rawEntity{
					id:    id,
					kind:  kind,
					table: tbl,
					order: coll.nextSourceOrder(),
				})
				return 0
			}))
			return 1
		}))
	}

	// Action "id" { key = "...", effects = {...} }
	L.SetGlobal("Action", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.actions = append(coll.actions, rawAction{id: id, table: tbl})
			return 0
		}))
		return 1
	}))

	// Current { min = 0, max = "max_health" } and
	// Trigger { when = "before", how = "take", ... } are pass-through
	// constructors that keep content files readable.
	for _, name := range []string{"Current", "Trigger"} {
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			L.Push(L.CheckTable(1))
			return 1
		}))
	}
}

// helper builds a global returning {type = typ, <names[i]> = arg i}. A table
// passed after the named arguments is merged in, so any helper accepts
// options such as { on = "source" }.
func helper(L *lua.LState, global, typ string, names ...string) {
	L.SetGlobal(global, L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(typ))
		for i, name := range names {
			v := L.Get(i + 1)
			if v == lua.LNil {
				continue
			}
			tbl.RawSetString(name, v)
		}
		if opts, ok := L.Get(len(names) + 1).(*lua.LTable); ok {
			opts.ForEach(func(k, v lua.LValue) {
				if ks, ok := k.(lua.LString); ok {
					tbl.RawSetString(string(ks), v)
				}
			})
		}
		L.Push(tbl)
		return 1
	}))
}

func registerConditionHelpers(L *lua.LState) {
	helper(L, "StatusAtLeast", "status_at_least", "status", "value", "of")
	helper(L, "StatusBelow", "status_below", "status", "value", "of")
	helper(L, "CurrentAtMost", "current_at_most", "current", "value", "of")
	helper(L, "CurrentAbove", "current_above", "current", "value", "of")
	helper(L, "HasCapability", "has_capability", "capability", "of")
	helper(L, "InfoIs", "info_is", "key", "value")
	helper(L, "IsCancelled", "is_cancelled")
	helper(L, "IsOwner", "is_owner", "of")

	// Not(condition)
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		inner := L.CheckTable(1)
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString("not"))
		tbl.RawSetString("inner", inner)
		L.Push(tbl)
		return 1
	}))
}

func registerEffectHelpers(L *lua.LState) {
	helper(L, "Damage", "damage", "value")
	helper(L, "Heal", "heal", "value")
	helper(L, "Gain", "gain", "current", "value")
	helper(L, "SetCurrent", "set_current", "current", "value")
	helper(L, "Modify", "modify", "status", "value")
	helper(L, "Death", "death")
	helper(L, "Revive", "revive", "value")
	helper(L, "Choose", "choose", "options")

	// Say and Emit double as trigger ops: the tables have the same shape.
	helper(L, "Say", "say", "text")
	helper(L, "Emit", "emit", "key")
}

func registerOpHelpers(L *lua.LState) {
	helper(L, "Adjust", "adjust", "effect", "param", "delta")
	helper(L, "Scale", "scale", "effect", "param", "factor")
	helper(L, "Cancel", "cancel")
	helper(L, "SetInfo", "set_info", "key", "value")
}
