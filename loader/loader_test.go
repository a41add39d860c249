package loader

import (
	"strings"
	"testing"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/types"
)

func TestLoad_MinimalGame(t *testing.T) {
	defs, err := Load("testdata/minimal")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if defs.Game.Title != "Minimal Battle" {
		t.Errorf("Title = %q, want %q", defs.Game.Title, "Minimal Battle")
	}
	if defs.Game.Player != "hero" {
		t.Errorf("Player = %q, want %q", defs.Game.Player, "hero")
	}
	if _, ok := defs.Entities["dummy"]; !ok {
		t.Error("enemy 'dummy' not found")
	}
	if _, ok := defs.Actions["poke"]; !ok {
		t.Error("action 'poke' not found")
	}
}

func TestLoad_FullGame(t *testing.T) {
	defs, err := Load("testdata/full")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if defs.Game.Author != "Tester" || defs.Game.Version != "0.2.0" {
		t.Errorf("Author/Version = %q/%q", defs.Game.Author, defs.Game.Version)
	}
	if len(defs.Game.Enemies) != 2 {
		t.Errorf("Enemies = %v", defs.Game.Enemies)
	}
	if len(defs.Game.Equipment) != 4 {
		t.Errorf("Equipment = %v", defs.Game.Equipment)
	}

	hero := defs.Entities["hero"]
	if len(hero.Currents) != 2 || hero.Currents[1].Key != "energy" || !hero.Currents[1].AllowOverMax {
		t.Errorf("hero currents = %+v", hero.Currents)
	}
	if len(hero.Triggers) != 1 || hero.Triggers[0].Event != "turn_start" {
		t.Errorf("hero triggers = %+v", hero.Triggers)
	}

	slime := defs.Entities["slime"]
	if len(slime.Behavior) != 2 || slime.Behavior[0].Weight != 3 || slime.Behavior[1].Action != "harden" {
		t.Errorf("slime behavior = %+v", slime.Behavior)
	}

	tail := defs.Entities["lizard_tail"]
	if len(tail.Triggers) != 1 || tail.Triggers[0].Important != "revive" {
		t.Errorf("lizard tail triggers = %+v", tail.Triggers)
	}

	// Cards and potions with effects are playable actions.
	got := defs.Playable()
	want := []string{"flex", "insight", "strike", "tonic"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Playable = %v, want %v", got, want)
	}
	if defs.Actions["tonic"].Uses != 1 {
		t.Errorf("tonic uses = %d", defs.Actions["tonic"].Uses)
	}
}

func TestLoad_FullGame_Plays(t *testing.T) {
	defs, err := Load("testdata/full")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	e, err := engine.New(defs, engine.Options{Seed: 1})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if len(e.Enemies) != 2 || e.Enemies[0].String() != "Slime 1" {
		t.Fatalf("enemies = %v", e.Enemies)
	}

	r := e.Step("play strike on slime 1")
	if len(r.Faults) != 0 {
		t.Fatalf("faults: %v", r.Faults)
	}
	hp, _ := e.Enemies[0].CurrentValue("health")
	if hp != 6 {
		t.Errorf("slime 1 health = %v, want 6", hp)
	}

	// Second Heart raises max health by 5 through a base modifier.
	maxHP, _ := e.Player.StatusValue("max_health")
	if maxHP != 35 {
		t.Errorf("hero max_health = %v, want 35", maxHP)
	}
}

func TestLoad_InvalidRefs_Fails(t *testing.T) {
	_, err := Load("testdata/invalid_refs")
	if err == nil {
		t.Fatal("expected validation error")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}

	for _, want := range []string{
		`player "ghost" is not defined`,
		`enemy "hero" is not an Enemy`,
		`equipment "strike" is not a Relic, Organ or Potion`,
		`follows status "max_hp"`,
		`when must be "before" or "after"`,
		`"explode"`,
		`damage.value`,
		`"fireball"`,
		`behavior action "vanish" is not defined`,
	} {
		assertContains(t, ve.Errors, want)
	}
}

func TestLoad_BadLuaSyntax_Fails(t *testing.T) {
	_, err := Load("testdata/bad_syntax")
	if err == nil {
		t.Fatal("expected error for bad Lua syntax")
	}
}

func TestLoad_NoGameDef_Fails(t *testing.T) {
	_, err := Load("testdata/no_game")
	if err == nil {
		t.Fatal("expected error for missing Game{}")
	}
	if !strings.Contains(err.Error(), "Game") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_SandboxEnforced(t *testing.T) {
	_, err := Load("testdata/sandbox")
	if err == nil {
		t.Fatal("expected error calling a removed global")
	}
}

func TestLoad_MathRandomRemoved(t *testing.T) {
	_, err := Load("testdata/sandbox_random")
	if err == nil {
		t.Fatal("expected error calling math.random")
	}
	if !strings.Contains(err.Error(), "game.lua") {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestLoad_SkipsHiddenFiles(t *testing.T) {
	defs, err := Load("testdata/hidden")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := defs.Entities["half_written"]; ok {
		t.Error("hidden file was loaded")
	}
	// The rest of math stays available.
	if got := defs.Entities["dummy"].Statuses["max_health"]; got != 5 {
		t.Errorf("dummy max_health = %v, want 5", got)
	}
}

func TestDiscover_Order(t *testing.T) {
	files, err := discover("testdata/ordering")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []string{"game.lua", "a.lua", "b.lua"}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("discover = %v, want %v", files, want)
	}
}

func TestLoad_EmptyDir_Fails(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without .lua files")
	}
	if _, err := Load("testdata/does_not_exist"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoad_FileOrdering(t *testing.T) {
	defs, err := Load("testdata/ordering")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// game.lua runs first, then a.lua, then b.lua.
	if defs.Entities["hero"].SourceOrder != 1 {
		t.Errorf("hero order = %d", defs.Entities["hero"].SourceOrder)
	}
	if defs.Entities["a_enemy"].SourceOrder != 2 {
		t.Errorf("a_enemy order = %d", defs.Entities["a_enemy"].SourceOrder)
	}
	if defs.Entities["b_enemy"].SourceOrder != 3 {
		t.Errorf("b_enemy order = %d", defs.Entities["b_enemy"].SourceOrder)
	}
	if got := defs.EntitiesWith(types.CapEnemy); len(got) != 2 || got[0] != "a_enemy" {
		t.Errorf("EntitiesWith(enemy) = %v", got)
	}
}

func TestLoad_SampleGame(t *testing.T) {
	defs, err := Load("../games/sample")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	e, err := engine.New(defs, engine.Options{Seed: 7})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if len(e.Enemies) != 3 || e.Enemies[2].String() != "Crypt Knight" {
		t.Fatalf("enemies = %v", e.Enemies)
	}

	// Ember Heart adds 6 to the warden's 40.
	if maxHP, _ := e.Player.StatusValue("max_health"); maxHP != 46 {
		t.Errorf("warden max_health = %v, want 46", maxHP)
	}

	r := e.Step("play strike on knight")
	if len(r.Faults) != 0 {
		t.Fatalf("faults: %v", r.Faults)
	}
	// The knight's armor trigger takes 1 off the strike.
	if hp, _ := e.Enemies[2].CurrentValue("health"); hp != 25 {
		t.Errorf("knight health = %v, want 25", hp)
	}
}
