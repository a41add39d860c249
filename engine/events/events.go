// Package events dispatches actions: before triggers on source, medium and
// target, then the action's effect units, then after triggers. Nested
// actions run depth-first through the Runtime handed to callbacks.
package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/types"
)

var (
	ErrAlreadyDispatched = errors.New("action already dispatched")
	ErrTooDeep           = errors.New("dispatch depth exceeded")
	ErrPanic             = errors.New("callback panicked")
	ErrNoChooser         = errors.New("no chooser configured")
)

// DefaultMaxDepth bounds nested dispatch so a trigger loop ends in a fault
// instead of a stack overflow.
const DefaultMaxDepth = 64

// FaultClass groups reported errors by how the dispatcher treats them.
type FaultClass int

const (
	FaultConfig      FaultClass = iota // bad content: unknown effect, missing param
	FaultInvariant                     // engine misuse: late cancel, re-dispatch
	FaultPanic                         // a callback panicked
	FaultInterrupted                   // the run's context ended
)

func (c FaultClass) String() string {
	switch c {
	case FaultConfig:
		return "config"
	case FaultInvariant:
		return "invariant"
	case FaultPanic:
		return "panic"
	case FaultInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("fault(%d)", int(c))
	}
}

// Fault is one error reported during a run. Faults never unwind dispatch.
type Fault struct {
	Class  FaultClass
	Action string
	Effect string
	Err    error
}

func (f Fault) Error() string {
	if f.Effect != "" {
		return fmt.Sprintf("%s fault in %s/%s: %v", f.Class, f.Action, f.Effect, f.Err)
	}
	return fmt.Sprintf("%s fault in %s: %v", f.Class, f.Action, f.Err)
}

func (f Fault) Unwrap() error { return f.Err }

// Classify maps an error to its fault class.
func Classify(err error) FaultClass {
	switch {
	case errors.Is(err, ErrPanic):
		return FaultPanic
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FaultInterrupted
	case errors.Is(err, entity.ErrCancelOutsideBefore),
		errors.Is(err, entity.ErrSealed),
		errors.Is(err, ErrAlreadyDispatched),
		errors.Is(err, ErrTooDeep):
		return FaultInvariant
	default:
		return FaultConfig
	}
}

// Report is everything a top-level run produced.
type Report struct {
	Output []string
	Trace  []string
	Faults []Fault
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger handed to callbacks.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRand sets the random source handed to callbacks.
func WithRand(r entity.Rand) Option {
	return func(d *Dispatcher) { d.rand = r }
}

// WithChooser sets the player-choice collaborator.
func WithChooser(c entity.Chooser) Option {
	return func(d *Dispatcher) { d.chooser = c }
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(d *Dispatcher) { d.maxDepth = n }
}

// Dispatcher runs actions on a single timeline.
type Dispatcher struct {
	registry *effects.Registry
	logger   *slog.Logger
	rand     entity.Rand
	chooser  entity.Chooser
	maxDepth int

	mu    sync.Mutex
	scope *entity.Scope
}

// New creates a dispatcher over an effect registry.
func New(reg *effects.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth: DefaultMaxDepth,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Registry returns the effect registry.
func (d *Dispatcher) Registry() *effects.Registry { return d.registry }

// SetScope makes every action dispatched from now on adopt into s. A nil
// scope leaves side effects on the actions.
func (d *Dispatcher) SetScope(s *entity.Scope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scope = s
}

// Run dispatches a top-level action and every action it causes. It holds the
// timeline for the whole dispatch, including any wait for player choice, so
// callers on other goroutines queue behind it. Callbacks must dispatch
// through their Runtime, never through Run.
func (d *Dispatcher) Run(ctx context.Context, a *entity.Action) Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := &run{d: d, ctx: ctx, log: d.logger}
	r.dispatch(a)
	return r.report
}

// run is one top-level dispatch and the Runtime its callbacks see.
type run struct {
	d      *Dispatcher
	ctx    context.Context
	log    *slog.Logger
	stack  []*entity.Action
	report Report
}

func (r *run) Context() context.Context { return r.ctx }
func (r *run) Logger() *slog.Logger     { return r.log }
func (r *run) Say(line string)          { r.report.Output = append(r.report.Output, line) }

func (r *run) Rand() entity.Rand { return r.d.rand }

func (r *run) Choose(p types.Prompt) (types.Answer, error) {
	if err := r.ctx.Err(); err != nil {
		return types.Answer{}, err
	}
	if r.d.chooser == nil {
		return types.Answer{}, ErrNoChooser
	}
	return r.d.chooser.Choose(r.ctx, p)
}

// Report records a callback error against the action being dispatched.
func (r *run) Report(err error) {
	if err == nil {
		return
	}
	r.fault(r.top(), "", err)
}

// Dispatch runs a nested action to completion. Its parent is the action
// currently being dispatched.
func (r *run) Dispatch(a *entity.Action) {
	if a == nil {
		return
	}
	if top := r.top(); top != nil && a.Parent() == nil && a.Stage() == entity.StagePending {
		a.SetParent(top)
	}
	r.dispatch(a)
}

func (r *run) top() *entity.Action {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

func (r *run) dispatch(a *entity.Action) {
	if a.Stage() != entity.StagePending {
		r.fault(a, "", fmt.Errorf("%s: %w", a, ErrAlreadyDispatched))
		return
	}
	if len(r.stack) >= r.d.maxDepth {
		a.Advance(entity.StageDone)
		r.fault(a, "", fmt.Errorf("%s at depth %d: %w", a, len(r.stack), ErrTooDeep))
		return
	}

	r.stack = append(r.stack, a)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()
	a.Bind(r)

	a.Advance(entity.StageBefore)
	r.runPhase(types.Before, a)

	a.Advance(entity.StageExecute)
	if a.Cancelled() {
		r.tracef("cancel %s", a)
	} else {
		for i := 0; i < a.Len(); i++ {
			u, _ := a.Unit(i)
			r.execute(a, u)
		}
	}

	a.Advance(entity.StageAfter)
	r.runPhase(types.After, a)
	a.Advance(entity.StageDone)

	if r.d.scope != nil {
		r.d.scope.Adopt(a)
	}
}

type participant struct {
	e    *entity.Entity
	role types.Role
}

// runPhase collects the matching triggers of source (make), medium (via) and
// target (take), orders them by level, and calls each in turn.
func (r *run) runPhase(phase types.Phase, a *entity.Action) {
	var merged []entity.Trigger
	for _, p := range []participant{
		{a.Source, types.Make},
		{a.Medium, types.Via},
		{a.Target, types.Take},
	} {
		if p.e == nil {
			continue
		}
		merged = append(merged, p.e.Triggers().Match(phase, p.role, a.Key)...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Level < merged[j].Level })

	for _, t := range merged {
		r.tracef("%s %s level %d", phase, a, t.Level)
		cancelled := a.Cancelled()
		r.call(a, t)
		if phase == types.Before && !cancelled && a.Cancelled() {
			r.tracef("cancelled %s", a)
		}
	}
}

func (r *run) call(a *entity.Action, t entity.Trigger) {
	defer func() {
		if p := recover(); p != nil {
			r.fault(a, "", fmt.Errorf("trigger level %d: %w: %v", t.Level, ErrPanic, p))
		}
	}()
	t.Call(r, a, nil, t.Level)
}

func (r *run) execute(a *entity.Action, u types.EffectUnit) {
	h, err := r.d.registry.Resolve(u)
	if err != nil {
		r.fault(a, u.Key, err)
		return
	}
	r.tracef("exec %s/%s", a, u.Key)

	defer func() {
		if p := recover(); p != nil {
			r.fault(a, u.Key, fmt.Errorf("%w: %v", ErrPanic, p))
		}
	}()
	if err := h(r, a, u); err != nil {
		r.fault(a, u.Key, err)
	}
}

func (r *run) fault(a *entity.Action, effect string, err error) {
	f := Fault{Class: Classify(err), Effect: effect, Err: err}
	if a != nil {
		f.Action = a.Key
	}
	r.report.Faults = append(r.report.Faults, f)

	args := []any{"class", f.Class.String(), "action", f.Action, "err", err}
	if effect != "" {
		args = append(args, "effect", effect)
	}
	switch f.Class {
	case FaultConfig:
		r.log.Warn("configuration error", args...)
	case FaultInterrupted:
		r.log.Info("dispatch interrupted", args...)
	default:
		r.log.Error("dispatch fault", args...)
	}
}

func (r *run) tracef(format string, args ...any) {
	line := strings.Repeat("  ", max(len(r.stack)-1, 0)) + fmt.Sprintf(format, args...)
	r.report.Trace = append(r.report.Trace, line)
	r.log.Debug(line)
}
