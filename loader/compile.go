package loader

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/types"
)

// rawEntity holds uncompiled entity data from Lua.
type rawEntity struct {
	id    string
	kind  types.Capability
	table *lua.LTable
	order int
}

// rawAction holds uncompiled action data from Lua.
type rawAction struct {
	id    string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getStrings returns the array part of a table field as strings.
func getStrings(tbl *lua.LTable, key string) []string {
	arr := getTable(tbl, key)
	if arr == nil {
		return nil
	}
	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Sequential integer keys starting at 1 make an array.
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// paramsOf copies every string-keyed field except "type" into a param map.
func paramsOf(tbl *lua.LTable) map[string]any {
	params := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && string(ks) != "type" {
			params[string(ks)] = toGoValue(v)
		}
	})
	return params
}

// each calls fn for the tables in the array part of tbl, in index order.
func each(tbl *lua.LTable, fn func(*lua.LTable)) {
	if tbl == nil {
		return
	}
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			fn(t)
		}
	}
}

// compile converts all collected Lua data into a Defs struct.
func compile(coll *collector) (*state.Defs, error) {
	defs := &state.Defs{
		Entities: map[string]types.EntityDef{},
		Actions:  map[string]types.ActionDef{},
	}

	if coll.game == nil {
		return nil, fmt.Errorf("no Game{} definition found")
	}
	defs.Game = compileGame(coll.game)

	for _, raw := range coll.entities {
		if _, dup := defs.Entities[raw.id]; dup {
			return nil, fmt.Errorf("entity %q defined twice", raw.id)
		}
		def, err := compileEntity(raw)
		if err != nil {
			return nil, fmt.Errorf("compiling entity %s: %w", raw.id, err)
		}
		defs.Entities[def.ID] = def

		// A card or potion carrying effects is its own play action.
		effTbl := getTable(raw.table, "effects")
		if effTbl != nil && (raw.kind == types.CapCard || raw.kind == types.CapPotion) {
			defs.Actions[raw.id] = types.ActionDef{
				ID:      raw.id,
				Key:     getString(raw.table, "key"),
				Label:   def.Label,
				Medium:  raw.id,
				Target:  getString(raw.table, "target"),
				Cost:    getNumber(raw.table, "cost"),
				Uses:    getInt(raw.table, "uses"),
				Effects: compileEffects(effTbl),
			}
		}
	}

	for _, raw := range coll.actions {
		if _, dup := defs.Actions[raw.id]; dup {
			return nil, fmt.Errorf("action %q defined twice", raw.id)
		}
		defs.Actions[raw.id] = compileAction(raw)
	}

	return defs, nil
}

func compileGame(tbl *lua.LTable) types.GameDef {
	return types.GameDef{
		Title:     getString(tbl, "title"),
		Author:    getString(tbl, "author"),
		Version:   getString(tbl, "version"),
		Player:    getString(tbl, "player"),
		Enemies:   getStrings(tbl, "enemies"),
		Equipment: getStrings(tbl, "equipment"),
		Intro:     getString(tbl, "intro"),
	}
}

func compileEntity(raw rawEntity) (types.EntityDef, error) {
	tbl := raw.table
	def := types.EntityDef{
		ID:           raw.id,
		Label:        getString(tbl, "label"),
		Capabilities: []types.Capability{raw.kind},
		Statuses:     map[string]float64{},
		SourceOrder:  raw.order,
	}

	if st := getTable(tbl, "statuses"); st != nil {
		var err error
		st.ForEach(func(k, v lua.LValue) {
			ks, ok := k.(lua.LString)
			if !ok {
				return
			}
			n, ok := v.(lua.LNumber)
			if !ok {
				err = fmt.Errorf("status %q is not a number", string(ks))
				return
			}
			def.Statuses[string(ks)] = float64(n)
		})
		if err != nil {
			return def, err
		}
	}

	currents, err := compileCurrents(getTable(tbl, "currents"))
	if err != nil {
		return def, err
	}
	def.Currents = currents

	each(getTable(tbl, "triggers"), func(t *lua.LTable) {
		def.Triggers = append(def.Triggers, compileTrigger(t))
	})

	behavior, err := compileBehavior(getTable(tbl, "behavior"))
	if err != nil {
		return def, err
	}
	def.Behavior = behavior
	return def, nil
}

// compileCurrents accepts a map keyed by current name or an array of
// Current{ key = ... } tables. Map keys are compiled in sorted order.
func compileCurrents(tbl *lua.LTable) ([]types.CurrentDef, error) {
	if tbl == nil {
		return nil, nil
	}
	var out []types.CurrentDef
	if tbl.MaxN() > 0 {
		for i := 1; i <= tbl.MaxN(); i++ {
			ct, ok := tbl.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("current #%d is not a table", i)
			}
			key := getString(ct, "key")
			if key == "" {
				return nil, fmt.Errorf("current #%d has no key", i)
			}
			cd, err := compileCurrent(key, ct)
			if err != nil {
				return nil, err
			}
			out = append(out, cd)
		}
		return out, nil
	}

	var keys []string
	tbl.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			keys = append(keys, string(ks))
		}
	})
	sort.Strings(keys)
	for _, key := range keys {
		ct, ok := tbl.RawGetString(key).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("current %q is not a table", key)
		}
		cd, err := compileCurrent(key, ct)
		if err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, nil
}

func compileCurrent(key string, tbl *lua.LTable) (types.CurrentDef, error) {
	cd := types.CurrentDef{
		Key:          key,
		AllowOverMin: getBool(tbl, "allow_over_min", false),
		AllowOverMax: getBool(tbl, "allow_over_max", false),
	}
	var err error
	if cd.Min, err = compileBound(tbl, "min"); err != nil {
		return cd, fmt.Errorf("current %s: %w", key, err)
	}
	if cd.Max, err = compileBound(tbl, "max"); err != nil {
		return cd, fmt.Errorf("current %s: %w", key, err)
	}
	if cd.Start, err = compileBound(tbl, "start"); err != nil {
		return cd, fmt.Errorf("current %s: %w", key, err)
	}
	return cd, nil
}

// compileBound reads a bound field: a number is fixed, a string names the
// status the bound follows, and nil leaves it unset.
func compileBound(tbl *lua.LTable, field string) (types.BoundDef, error) {
	switch v := tbl.RawGetString(field).(type) {
	case lua.LNumber:
		return types.BoundDef{Value: float64(v), Set: true}, nil
	case lua.LString:
		return types.BoundDef{Status: string(v)}, nil
	case *lua.LNilType:
		return types.BoundDef{}, nil
	default:
		return types.BoundDef{}, fmt.Errorf("%s must be a number or a status name, got %s", field, v.Type())
	}
}

func compileTrigger(tbl *lua.LTable) types.TriggerDef {
	def := types.TriggerDef{
		When:      types.Phase(getString(tbl, "when")),
		How:       types.Role(getString(tbl, "how")),
		Event:     getString(tbl, "event"),
		Level:     getInt(tbl, "level"),
		Important: getString(tbl, "important"),
		Only:      getString(tbl, "only"),
	}
	if condTbl := getTable(tbl, "conditions"); condTbl != nil {
		def.Conditions = compileConditions(condTbl)
	}
	each(getTable(tbl, "ops"), func(t *lua.LTable) {
		def.Ops = append(def.Ops, types.TriggerOp{Type: getString(t, "type"), Params: paramsOf(t)})
	})
	return def
}

func compileBehavior(tbl *lua.LTable) ([]types.BehaviorEntry, error) {
	if tbl == nil {
		return nil, nil
	}
	var out []types.BehaviorEntry
	for i := 1; i <= tbl.MaxN(); i++ {
		switch v := tbl.RawGetInt(i).(type) {
		case lua.LString:
			out = append(out, types.BehaviorEntry{Action: string(v), Weight: 1})
		case *lua.LTable:
			w := 1
			if _, ok := v.RawGetString("weight").(lua.LNumber); ok {
				w = getInt(v, "weight")
			}
			out = append(out, types.BehaviorEntry{Action: getString(v, "action"), Weight: w})
		default:
			return nil, fmt.Errorf("behavior #%d must be an action id or {action, weight}", i)
		}
	}
	return out, nil
}

func compileAction(raw rawAction) types.ActionDef {
	tbl := raw.table
	def := types.ActionDef{
		ID:     raw.id,
		Key:    getString(tbl, "key"),
		Label:  getString(tbl, "label"),
		Medium: getString(tbl, "medium"),
		Target: getString(tbl, "target"),
		Cost:   getNumber(tbl, "cost"),
		Uses:   getInt(tbl, "uses"),
	}
	if effTbl := getTable(tbl, "effects"); effTbl != nil {
		def.Effects = compileEffects(effTbl)
	}
	return def
}

func compileConditions(tbl *lua.LTable) []types.Condition {
	var conditions []types.Condition
	each(tbl, func(t *lua.LTable) {
		conditions = append(conditions, compileCondition(t))
	})
	return conditions
}

func compileCondition(tbl *lua.LTable) types.Condition {
	condType := getString(tbl, "type")

	if condType == "not" {
		if innerTbl := getTable(tbl, "inner"); innerTbl != nil {
			inner := compileCondition(innerTbl)
			return types.Condition{Type: "not", Inner: &inner}
		}
	}
	return types.Condition{Type: condType, Params: paramsOf(tbl)}
}

func compileEffects(tbl *lua.LTable) []types.EffectUnit {
	var units []types.EffectUnit
	each(tbl, func(t *lua.LTable) {
		units = append(units, types.EffectUnit{Key: getString(t, "type"), Params: paramsOf(t)})
	})
	return units
}

// sortedLuaFiles returns .lua files in a directory, with game.lua first
// and the rest sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var gameFile string
	var others []string
	for _, f := range files {
		if f == "game.lua" {
			gameFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if gameFile != "" {
		return append([]string{gameFile}, others...)
	}
	return others
}
