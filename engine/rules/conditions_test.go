package rules

import (
	"testing"

	"github.com/google/uuid"
	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/types"
)

func condTestEnv() Env {
	owner := entity.New(uuid.New(), "slime", "Slime", types.CapEnemy)
	owner.AddStatus("armor", 3)
	owner.AddCurrent(entity.NewCurrent("health", 4, entity.Fixed(0), entity.Fixed(12)))

	player := entity.New(uuid.New(), "player", "Player", types.CapPlayer)
	player.AddStatus("strength", 2)

	a := entity.NewAction("damage", player, nil, owner)
	a.SetInfo("crit", true)
	a.SetInfo("hits", 2.0)
	a.SetInfo("combo", []any{"strike", "strike"})
	return Env{Owner: owner, Action: a}
}

func TestEvalCondition(t *testing.T) {
	env := condTestEnv()

	tests := []struct {
		name string
		cond types.Condition
		want bool
	}{
		{
			name: "status_at_least: owner meets threshold",
			cond: types.Condition{Type: "status_at_least", Params: map[string]any{"status": "armor", "value": 3}},
			want: true,
		},
		{
			name: "status_at_least: missing status",
			cond: types.Condition{Type: "status_at_least", Params: map[string]any{"status": "vigor", "value": 0}},
			want: false,
		},
		{
			name: "status_at_least: of source",
			cond: types.Condition{Type: "status_at_least", Params: map[string]any{"status": "strength", "value": 2, "of": "source"}},
			want: true,
		},
		{
			name: "status_below: missing status counts as zero",
			cond: types.Condition{Type: "status_below", Params: map[string]any{"status": "vigor", "value": 1}},
			want: true,
		},
		{
			name: "status_below: fails",
			cond: types.Condition{Type: "status_below", Params: map[string]any{"status": "armor", "value": 3}},
			want: false,
		},
		{
			name: "current_at_most: passes",
			cond: types.Condition{Type: "current_at_most", Params: map[string]any{"current": "health", "value": 4}},
			want: true,
		},
		{
			name: "current_above: fails",
			cond: types.Condition{Type: "current_above", Params: map[string]any{"current": "health", "value": 4}},
			want: false,
		},
		{
			name: "current_above: source lacks current",
			cond: types.Condition{Type: "current_above", Params: map[string]any{"current": "health", "value": 0, "of": "source"}},
			want: false,
		},
		{
			name: "has_capability: target is enemy",
			cond: types.Condition{Type: "has_capability", Params: map[string]any{"capability": "enemy", "of": "target"}},
			want: true,
		},
		{
			name: "has_capability: no medium",
			cond: types.Condition{Type: "has_capability", Params: map[string]any{"capability": "card", "of": "medium"}},
			want: false,
		},
		{
			name: "info_is: bool matches",
			cond: types.Condition{Type: "info_is", Params: map[string]any{"key": "crit", "value": true}},
			want: true,
		},
		{
			name: "info_is: numbers compare by value",
			cond: types.Condition{Type: "info_is", Params: map[string]any{"key": "hits", "value": 2}},
			want: true,
		},
		{
			name: "info_is: missing key against nil",
			cond: types.Condition{Type: "info_is", Params: map[string]any{"key": "chain"}},
			want: true,
		},
		{
			name: "info_is: table values compare by contents",
			cond: types.Condition{Type: "info_is", Params: map[string]any{"key": "combo", "value": []any{"strike", "strike"}}},
			want: true,
		},
		{
			name: "info_is: different tables",
			cond: types.Condition{Type: "info_is", Params: map[string]any{"key": "combo", "value": []any{"strike"}}},
			want: false,
		},
		{
			name: "info_is: table against scalar",
			cond: types.Condition{Type: "info_is", Params: map[string]any{"key": "combo", "value": "strike"}},
			want: false,
		},
		{
			name: "is_cancelled: not cancelled",
			cond: types.Condition{Type: "is_cancelled"},
			want: false,
		},
		{
			name: "is_owner: target is owner",
			cond: types.Condition{Type: "is_owner", Params: map[string]any{"of": "target"}},
			want: true,
		},
		{
			name: "is_owner: source is not",
			cond: types.Condition{Type: "is_owner", Params: map[string]any{"of": "source"}},
			want: false,
		},
		{
			name: "not: negates",
			cond: types.Condition{
				Type:  "not",
				Inner: &types.Condition{Type: "is_owner", Params: map[string]any{"of": "source"}},
			},
			want: true,
		},
		{
			name: "unknown condition type: false",
			cond: types.Condition{Type: "bogus"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvalCondition(tt.cond, env)
			if got != tt.want {
				t.Errorf("EvalCondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalAllConditions_OneFails(t *testing.T) {
	env := condTestEnv()
	conds := []types.Condition{
		{Type: "status_at_least", Params: map[string]any{"status": "armor", "value": 1}},
		{Type: "is_cancelled"},
	}
	if EvalAllConditions(conds, env) {
		t.Error("expected conditions to fail")
	}
}

func TestEvalAllConditions_Empty(t *testing.T) {
	if !EvalAllConditions(nil, Env{}) {
		t.Error("expected empty conditions to pass")
	}
}

func TestPick_NoAction(t *testing.T) {
	env := Env{Owner: entity.New(uuid.New(), "relic", "Relic")}
	if got := pick("", "owner", env); got != env.Owner {
		t.Errorf("pick default = %v, want owner", got)
	}
	if got := pick("target", "owner", env); got != nil {
		t.Errorf("pick target without action = %v, want nil", got)
	}
}
