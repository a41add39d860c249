package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/types"
)

func unit(key string, params map[string]any) types.EffectUnit {
	return types.EffectUnit{Key: key, Params: params}
}

func healthCurrent(max string) types.CurrentDef {
	return types.CurrentDef{
		Key: "health",
		Min: types.BoundDef{Value: 0, Set: true},
		Max: types.BoundDef{Status: max},
	}
}

// testDefs returns a small battle for CLI testing: a hero with a strike and
// an insight card against one slime.
func testDefs() *state.Defs {
	return &state.Defs{
		Game: types.GameDef{
			Title:   "Test Battle",
			Author:  "Test",
			Version: "1.0",
			Player:  "hero",
			Enemies: []string{"slime"},
			Intro:   "A slime oozes closer.",
		},
		Entities: map[string]types.EntityDef{
			"hero": {
				ID:           "hero",
				Label:        "Hero",
				Capabilities: []types.Capability{types.CapPlayer},
				Statuses:     map[string]float64{"max_health": 20, "max_energy": 3},
				Currents: []types.CurrentDef{
					healthCurrent("max_health"),
					{Key: "energy", Min: types.BoundDef{Value: 0, Set: true}, Max: types.BoundDef{Status: "max_energy"}},
				},
			},
			"slime": {
				ID:           "slime",
				Label:        "Slime",
				Capabilities: []types.Capability{types.CapEnemy},
				Statuses:     map[string]float64{"max_health": 10},
				Currents:     []types.CurrentDef{healthCurrent("max_health")},
				Behavior:     []types.BehaviorEntry{{Action: "lick", Weight: 1}},
				SourceOrder:  1,
			},
			"strike":  {ID: "strike", Label: "Strike", Capabilities: []types.Capability{types.CapCard}, SourceOrder: 2},
			"insight": {ID: "insight", Label: "Insight", Capabilities: []types.Capability{types.CapCard}, SourceOrder: 3},
		},
		Actions: map[string]types.ActionDef{
			"strike": {ID: "strike", Key: "attack", Medium: "strike", Cost: 1, Effects: []types.EffectUnit{
				unit("damage", map[string]any{"value": 6}),
			}},
			"insight": {ID: "insight", Medium: "insight", Target: "self", Effects: []types.EffectUnit{
				unit("choose", map[string]any{"options": []any{"fire", "ice"}}),
			}},
			"lick": {ID: "lick", Key: "attack", Effects: []types.EffectUnit{
				unit("damage", map[string]any{"value": 1}),
			}},
		},
	}
}

func newTestCLI(t *testing.T, input string) (*CLI, *bytes.Buffer) {
	t.Helper()
	c, err := New(testDefs(), engine.Options{Seed: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var out bytes.Buffer
	c.In = strings.NewReader(input)
	c.Out = &out
	c.SaveDir = t.TempDir()
	return c, &out
}

func enemyHealth(t *testing.T, c *CLI) float64 {
	t.Helper()
	v, ok := c.Engine.Enemies[0].CurrentValue("health")
	if !ok {
		t.Fatal("slime has no health")
	}
	return v
}

func TestCLI_Intro(t *testing.T) {
	c, out := newTestCLI(t, "/quit\n")
	c.Run()

	if !strings.Contains(out.String(), "A slime oozes closer.") {
		t.Errorf("expected intro text in output, got:\n%s", out.String())
	}
}

func TestCLI_BasicCombat(t *testing.T) {
	c, out := newTestCLI(t, "play strike\n/quit\n")
	c.Run()

	if !strings.Contains(out.String(), "Slime takes 6 damage.") {
		t.Errorf("expected damage line, got:\n%s", out.String())
	}
	if got := enemyHealth(t, c); got != 4 {
		t.Errorf("slime health = %v, want 4", got)
	}
}

func TestCLI_HelpCommand(t *testing.T) {
	c, out := newTestCLI(t, "/help\n/quit\n")
	c.Run()

	output := out.String()
	for _, want := range []string{"/save", "/load", "play <card>", "end (pass, z)"} {
		if !strings.Contains(output, want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestCLI_SaveAndLoad(t *testing.T) {
	c, out := newTestCLI(t, "play strike\n/save s1\nplay strike\n/load s1\n/quit\n")
	c.Run()

	output := out.String()
	if !strings.Contains(output, "[Game saved to s1.]") {
		t.Errorf("expected save confirmation, got:\n%s", output)
	}
	if !strings.Contains(output, "[Game loaded from s1 (turn 1).]") {
		t.Errorf("expected load confirmation, got:\n%s", output)
	}
	if _, err := os.Stat(filepath.Join(c.SaveDir, "s1.json")); err != nil {
		t.Errorf("save file: %v", err)
	}
	// The second strike is undone by the load.
	if got := enemyHealth(t, c); got != 4 {
		t.Errorf("slime health after load = %v, want 4", got)
	}
}

func TestCLI_Choose(t *testing.T) {
	c, out := newTestCLI(t, "play insight\n2\n/quit\n")
	c.Run()

	if !strings.Contains(out.String(), "  2) ice") {
		t.Errorf("expected numbered options, got:\n%s", out.String())
	}
	choices := c.Engine.State.Choices
	if len(choices) != 1 || len(choices[0]) != 1 || choices[0][0] != 1 {
		t.Errorf("Choices = %v, want [[1]]", choices)
	}
}

func TestCLI_Choose_BadInputAsksAgain(t *testing.T) {
	c, out := newTestCLI(t, "play insight\nseven\n3\n1\n/quit\n")
	c.Run()

	if n := strings.Count(out.String(), "[Pick up to 1 of 1-2.]"); n != 2 {
		t.Errorf("expected 2 re-prompts, got %d in:\n%s", n, out.String())
	}
	choices := c.Engine.State.Choices
	if len(choices) != 1 || choices[0][0] != 0 {
		t.Errorf("Choices = %v, want [[0]]", choices)
	}
}

func TestCLI_Choose_InputEnds(t *testing.T) {
	c, out := newTestCLI(t, "play insight\n")
	c.Run()

	if !strings.Contains(out.String(), "[fault: ") {
		t.Errorf("expected a fault when input ends mid-choice, got:\n%s", out.String())
	}
}

func TestCLI_SaveAndLoad_ReplaysChoices(t *testing.T) {
	c, _ := newTestCLI(t, "play insight\n2\n/save s2\n/load s2\n/quit\n")
	c.Run()

	choices := c.Engine.State.Choices
	if len(choices) != 1 || choices[0][0] != 1 {
		t.Errorf("Choices after load = %v, want [[1]]", choices)
	}
}

func TestCLI_UnknownMetaCommand(t *testing.T) {
	c, out := newTestCLI(t, "/foo\n/quit\n")
	c.Run()

	if !strings.Contains(out.String(), "Unknown command: /foo") {
		t.Error("expected unknown command message")
	}
}

func TestCLI_TraceToggle(t *testing.T) {
	c, out := newTestCLI(t, "/trace\nplay strike\n/trace\n/quit\n")
	c.Run()

	output := out.String()
	if !strings.Contains(output, "Trace output enabled.") {
		t.Error("expected trace enabled message")
	}
	if !strings.Contains(output, "[trace: ") {
		t.Errorf("expected trace lines, got:\n%s", output)
	}
	if !strings.Contains(output, "Trace output disabled.") {
		t.Error("expected trace disabled message")
	}
}

func TestCLI_StateCommand(t *testing.T) {
	c, out := newTestCLI(t, "/state\n/quit\n")
	c.Run()

	output := out.String()
	if !strings.Contains(output, "Turn: 1") {
		t.Errorf("expected turn in state output, got:\n%s", output)
	}
	if !strings.Contains(output, "Slime (slime)") {
		t.Errorf("expected slime in state output, got:\n%s", output)
	}
}

func TestCLI_EmptyInput(t *testing.T) {
	c, out := newTestCLI(t, "\n\n/quit\n")
	c.Run()

	if !strings.Contains(out.String(), "Goodbye.") {
		t.Error("expected goodbye after empty lines")
	}
}

func TestCLI_LoadNonexistent(t *testing.T) {
	c, out := newTestCLI(t, "/load nope\n/quit\n")
	c.Run()

	if !strings.Contains(out.String(), "Load failed") {
		t.Error("expected load failure message")
	}
}

func TestCLI_Again_RepeatsLastCommand(t *testing.T) {
	c, _ := newTestCLI(t, "play strike\nagain\n/quit\n")
	c.Run()

	if got := c.Engine.State.CommandLog; len(got) != 2 || got[1] != "play strike" {
		t.Errorf("CommandLog = %v", got)
	}
}

func TestCLI_G_RepeatsLastCommand(t *testing.T) {
	c, _ := newTestCLI(t, "play strike\ng\n/quit\n")
	c.Run()

	if got := enemyHealth(t, c); got != 0 {
		t.Errorf("slime health = %v, want 0", got)
	}
	if c.Engine.State.Outcome != types.Victory {
		t.Errorf("Outcome = %q, want victory", c.Engine.State.Outcome)
	}
}

func TestCLI_Again_NothingToRepeat(t *testing.T) {
	c, out := newTestCLI(t, "again\n/quit\n")
	c.Run()

	if !strings.Contains(out.String(), "Nothing to repeat.") {
		t.Error("expected 'Nothing to repeat.' message")
	}
}

func TestCLI_EchoInput(t *testing.T) {
	c, out := newTestCLI(t, "# a comment\nstatus\n/quit\n")
	c.EchoInput = true
	c.Run()

	output := out.String()
	if strings.Contains(output, "a comment") {
		t.Error("comment lines must be skipped")
	}
	if !strings.Contains(output, "> status\n") {
		t.Errorf("expected echoed command, got:\n%s", output)
	}
}

func TestParsePicks(t *testing.T) {
	tests := []struct {
		line  string
		count int
		want  []int
		ok    bool
	}{
		{"1", 1, []int{0}, true},
		{"2, 3", 2, []int{1, 2}, true},
		{"1 2", 1, nil, false},
		{"0", 1, nil, false},
		{"4", 1, nil, false},
		{"x", 1, nil, false},
		{"", 1, nil, false},
	}
	for _, tt := range tests {
		got, ok := parsePicks(tt.line, 3, tt.count)
		if ok != tt.ok || len(got) != len(tt.want) {
			t.Errorf("parsePicks(%q, %d) = %v, %v", tt.line, tt.count, got, ok)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parsePicks(%q) = %v, want %v", tt.line, got, tt.want)
			}
		}
	}
}
