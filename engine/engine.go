// Package engine provides the Step() orchestrator that wires together
// parsing, resolution, the trigger dispatcher, and the turn loop of a battle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/engine/events"
	"github.com/nathoo/rulecore/engine/parser"
	"github.com/nathoo/rulecore/engine/resolve"
	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/types"
)

var (
	ErrNoPlayer     = errors.New("game defines no player")
	ErrUnknownDef   = errors.New("undefined entity")
	ErrNoEnemies    = errors.New("game defines no enemies")
	ErrNotEquipment = errors.New("equipment must be a relic, organ or potion")
)

// Options configures a new Engine.
type Options struct {
	Seed     int64
	Logger   *slog.Logger
	Chooser  entity.Chooser
	MaxDepth int
	// Replay answers are handed to choice prompts before Chooser is asked.
	Replay [][]int
}

// Engine holds the game definitions, the spawned battle and its bookkeeping.
type Engine struct {
	Defs       *state.Defs
	State      *types.State
	RNG        *RNG
	Registry   *effects.Registry
	Dispatcher *events.Dispatcher

	Player  *entity.Entity
	Enemies []*entity.Entity

	// media are the card and potion entities actions are played through,
	// keyed by definition id.
	media   map[string]*entity.Entity
	spawned []*entity.Entity
	handles map[*entity.Entity]string
	scope   *entity.Scope
	ids     io.Reader
	uses    map[string]int
	chooser *recordingChooser
	opening types.Result
	log     *slog.Logger
	ctx     context.Context
}

// New builds a battle from definitions: spawns the player, enemies, cards
// and equipment, installs their triggers, and runs the opening turn_start.
// The battle adopts every dispatched action and releases their side effects
// when it ends.
func New(defs *state.Defs, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		Defs:    defs,
		State:   state.NewState(opts.Seed),
		RNG:     NewRNG(opts.Seed),
		media:   map[string]*entity.Entity{},
		handles: map[*entity.Entity]string{},
		scope:   entity.NewScope("battle"),
		ids:     rand.New(rand.NewSource(opts.Seed ^ 0x5eed)),
		uses:    map[string]int{},
		chooser: &recordingChooser{inner: opts.Chooser, queue: opts.Replay},
		log:     log,
		ctx:     context.Background(),
	}
	e.chooser.state = e.State

	e.Registry = effects.NewRegistry()
	if err := effects.RegisterBuiltins(e.Registry, defs); err != nil {
		return nil, err
	}
	dopts := []events.Option{
		events.WithLogger(log),
		events.WithRand(e.RNG),
		events.WithChooser(e.chooser),
	}
	if opts.MaxDepth > 0 {
		dopts = append(dopts, events.WithMaxDepth(opts.MaxDepth))
	}
	e.Dispatcher = events.New(e.Registry, dopts...)
	e.Dispatcher.SetScope(e.scope)

	if err := e.spawnAll(); err != nil {
		return nil, err
	}

	e.State.Turn = 1
	e.run(&e.opening, e.turnAction(TurnStart, e.Player))
	e.State.RNGPosition = e.RNG.Position()
	return e, nil
}

// Intro returns the game's intro text followed by the output of the opening
// turn_start, which New already ran.
func (e *Engine) Intro() types.Result {
	var result types.Result
	if e.Defs.Game.Intro != "" {
		result.Output = append(result.Output, e.Defs.Game.Intro)
	}
	result.Output = append(result.Output, e.opening.Output...)
	result.Trace = append(result.Trace, e.opening.Trace...)
	result.Faults = append(result.Faults, e.opening.Faults...)
	return result
}

// Step processes one player command and returns the result.
func (e *Engine) Step(input string) types.Result {
	return e.StepContext(context.Background(), input)
}

// StepContext is Step with a context that interrupts pending choice prompts.
func (e *Engine) StepContext(ctx context.Context, input string) types.Result {
	var result types.Result
	e.ctx = ctx

	// 0. Battle over: block all gameplay commands.
	if e.State.Outcome != types.Ongoing {
		result.Output = append(result.Output, "The battle is over. Use /load to restore a save or /quit to exit.")
		return result
	}

	// 1. Parse input.
	intent := parser.Parse(input)

	// 2. Log the command.
	e.State.CommandLog = append(e.State.CommandLog, input)

	// 3. Empty input.
	if intent.Verb == "" {
		result.Output = append(result.Output, "What do you want to do?")
		return result
	}

	// 4. Route the verb.
	switch intent.Verb {
	case "play":
		e.play(&result, intent)
	case "end":
		e.endTurn(&result)
	case "look":
		result.Output = append(result.Output, e.look(intent.Object)...)
	case "status":
		result.Output = append(result.Output, e.status()...)
	default:
		result.Output = append(result.Output, fmt.Sprintf("I don't know how to %q. (play, end, look, status)", intent.Verb))
	}

	// 5. Track RNG position for save/load.
	e.State.RNGPosition = e.RNG.Position()

	return result
}

// play resolves and dispatches a playable action.
func (e *Engine) play(result *types.Result, intent types.Intent) {
	if intent.Object == "" {
		result.Output = append(result.Output, "Play what?")
		return
	}

	id, err := resolve.Resolve(intent.Object, e.playableCandidates())
	if err != nil {
		result.Output = append(result.Output, err.Error())
		return
	}
	def := e.Defs.Actions[id]

	if def.Uses > 0 && e.uses[id] >= def.Uses {
		result.Output = append(result.Output, fmt.Sprintf("%s is spent.", actionLabel(def)))
		return
	}

	target, err := e.pickTarget(def, intent.Target)
	if err != nil {
		result.Output = append(result.Output, err.Error())
		return
	}

	if def.Cost > 0 {
		energy, ok := e.Player.CurrentValue(Energy)
		if !ok || energy < def.Cost {
			result.Output = append(result.Output, fmt.Sprintf("Not enough energy for %s.", actionLabel(def)))
			return
		}
		if _, err := e.Player.AddToCurrent(Energy, -def.Cost, nil); err != nil {
			e.log.Error("spend energy", "action", id, "err", err)
		}
	}
	e.uses[id]++

	key, units, _ := e.Defs.Template(id)
	e.run(result, entity.NewAction(key, e.Player, e.media[def.Medium], target, units...))
}

// pickTarget chooses the target of a player action: the named enemy, the
// player for self-targeted actions, or the first living enemy.
func (e *Engine) pickTarget(def types.ActionDef, name string) (*entity.Entity, error) {
	if def.Target == "self" {
		return e.Player, nil
	}
	living := e.livingEnemies()
	if name == "" {
		if len(living) == 0 {
			return nil, errors.New("there is nothing left to target")
		}
		return living[0], nil
	}

	byHandle := map[string]*entity.Entity{}
	var cands []resolve.Candidate
	for _, en := range append(living, e.Player) {
		byHandle[e.handles[en]] = en
		cands = append(cands, resolve.Candidate{ID: e.handles[en], Name: en.String()})
	}
	h, err := resolve.Resolve(name, cands)
	if err != nil {
		return nil, err
	}
	return byHandle[h], nil
}

// playable returns the ids of actions whose medium is in the battle.
func (e *Engine) playable() []string {
	var ids []string
	for _, id := range e.Defs.Playable() {
		if e.media[e.Defs.Actions[id].Medium] != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *Engine) playableCandidates() []resolve.Candidate {
	var cands []resolve.Candidate
	for _, id := range e.playable() {
		cands = append(cands, resolve.Candidate{ID: id, Name: actionLabel(e.Defs.Actions[id])})
	}
	return cands
}

// run dispatches a top-level action, folds its report into result, and
// settles the battle outcome.
func (e *Engine) run(result *types.Result, a *entity.Action) {
	rep := e.Dispatcher.Run(e.ctx, a)
	result.Output = append(result.Output, rep.Output...)
	result.Trace = append(result.Trace, rep.Trace...)
	for _, f := range rep.Faults {
		result.Faults = append(result.Faults, f.Error())
	}
	e.settle(result)
}

// settle ends the battle once the player or every enemy is dead.
func (e *Engine) settle(result *types.Result) {
	if e.State.Outcome != types.Ongoing {
		return
	}
	switch {
	case e.Player.Flag(effects.Dead):
		e.State.Outcome = types.Defeat
		result.Output = append(result.Output, "You have been defeated.")
	case len(e.livingEnemies()) == 0:
		e.State.Outcome = types.Victory
		result.Output = append(result.Output, "Victory!")
	default:
		return
	}
	n := e.scope.Close()
	e.log.Info("battle over", "outcome", string(e.State.Outcome), "turn", e.State.Turn, "released", n)
}

// Over reports whether the battle has ended.
func (e *Engine) Over() bool {
	return e.State.Outcome != types.Ongoing
}

func (e *Engine) livingEnemies() []*entity.Entity {
	var out []*entity.Entity
	for _, en := range e.Enemies {
		if !en.Flag(effects.Dead) {
			out = append(out, en)
		}
	}
	return out
}

// Snapshot captures the observable state of every spawned entity.
func (e *Engine) Snapshot() types.Snapshot {
	snap := types.Snapshot{
		Turn:    e.State.Turn,
		Outcome: e.State.Outcome,
	}
	for _, en := range e.spawned {
		es := types.EntitySnapshot{
			DefID:    en.DefID(),
			Label:    en.String(),
			Statuses: map[string]float64{},
			Currents: map[string]float64{},
		}
		for _, k := range en.StatusKeys() {
			es.Statuses[k], _ = en.StatusValue(k)
		}
		for _, k := range en.CurrentKeys() {
			es.Currents[k], _ = en.CurrentValue(k)
		}
		snap.Entities = append(snap.Entities, es)
	}
	return snap
}

// look describes every living enemy, or the one named.
func (e *Engine) look(name string) []string {
	if name != "" {
		target, err := e.pickTarget(types.ActionDef{}, name)
		if err != nil {
			return []string{err.Error()}
		}
		return []string{describe(target)}
	}
	living := e.livingEnemies()
	if len(living) == 0 {
		return []string{"No enemies remain."}
	}
	out := make([]string, 0, len(living))
	for _, en := range living {
		out = append(out, describe(en))
	}
	return out
}

// status describes the player and what they can play.
func (e *Engine) status() []string {
	out := []string{fmt.Sprintf("Turn %d.", e.State.Turn), describe(e.Player)}
	var hand []string
	for _, id := range e.playable() {
		def := e.Defs.Actions[id]
		label := actionLabel(def)
		if def.Cost > 0 {
			label += fmt.Sprintf(" (%s)", formatNumber(def.Cost))
		}
		if def.Uses > 0 {
			label += fmt.Sprintf(" [%d left]", def.Uses-e.uses[id])
		}
		hand = append(hand, label)
	}
	if len(hand) > 0 {
		out = append(out, "You can play: "+strings.Join(hand, ", ")+".")
	}
	return out
}

// describe renders an entity's currents and statuses on one line.
func describe(en *entity.Entity) string {
	var parts []string
	for _, k := range en.CurrentKeys() {
		c, _ := en.Current(k)
		if hi, ok, err := c.Max.Resolve(en); err == nil && ok {
			parts = append(parts, fmt.Sprintf("%s %s/%s", k, formatNumber(c.Value()), formatNumber(hi)))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", k, formatNumber(c.Value())))
		}
	}
	for _, k := range en.StatusKeys() {
		if k == effects.Dead || isBoundStatus(en, k) {
			continue
		}
		v, _ := en.StatusValue(k)
		if v == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", k, formatNumber(v)))
	}
	line := en.String()
	if en.Flag(effects.Dead) {
		line += " (dead)"
	}
	if len(parts) > 0 {
		line += ": " + strings.Join(parts, ", ")
	}
	return line
}

// isBoundStatus reports whether key only serves as a current bound, like
// max_health, and so is already shown next to the current.
func isBoundStatus(en *entity.Entity, key string) bool {
	for _, ck := range en.CurrentKeys() {
		c, _ := en.Current(ck)
		if c.Max == entity.StatusRef(key) || c.Min == entity.StatusRef(key) {
			return true
		}
	}
	return false
}

func actionLabel(def types.ActionDef) string {
	if def.Label != "" {
		return def.Label
	}
	return def.ID
}

// recordingChooser answers prompts from a replay queue first, then from the
// wrapped chooser, and records every answer in the state for saves.
type recordingChooser struct {
	inner entity.Chooser
	queue [][]int
	state *types.State
}

func (c *recordingChooser) Choose(ctx context.Context, p types.Prompt) (types.Answer, error) {
	var ans types.Answer
	switch {
	case len(c.queue) > 0:
		ans.Picks = append([]int(nil), c.queue[0]...)
		c.queue = c.queue[1:]
	case c.inner != nil:
		var err error
		ans, err = c.inner.Choose(ctx, p)
		if err != nil {
			return types.Answer{}, err
		}
	default:
		return types.Answer{}, events.ErrNoChooser
	}
	c.state.Choices = append(c.state.Choices, append([]int(nil), ans.Picks...))
	return ans, nil
}
