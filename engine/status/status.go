// Package status implements layered entity attributes: a base value plus an
// ordered list of modifiers folded into an effective value on every read.
package status

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nathoo/rulecore/engine/handle"
)

// Kind defines how a modifier is folded into the value.
type Kind int8

const (
	Add  Kind = iota // summed onto the layer input
	Mul              // multiplies the additive result
	Func             // applied last, in registration order
)

// Layer selects which stage of the fold a modifier belongs to.
type Layer int8

const (
	LayerBase    Layer = iota // folded into the layered base
	LayerCurrent              // folded on top of the layered base
)

// Mode selects whether a modifier is re-evaluated on every read.
type Mode int8

const (
	Absolute Mode = iota
	Snapshot
)

// ErrNoFunc is returned when a Func modifier carries no function.
var ErrNoFunc = errors.New("function modifier without function")

// Modifier is one registered adjustment to a Status.
type Modifier struct {
	Source uuid.UUID // entity that applied it; zero when none
	Layer  Layer
	Kind   Kind
	Mode   Mode

	Value     float64
	ValueFunc func() float64        // dynamic Value for Add/Mul, optional
	Func      func(float64) float64 // required for Func
}

type entry struct {
	id     uint64
	mod    Modifier
	frozen bool
	amount float64 // frozen Add/Mul value, or frozen Func delta
}

func (e *entry) value() float64 {
	if e.frozen {
		return e.amount
	}
	if e.mod.ValueFunc != nil {
		return e.mod.ValueFunc()
	}
	return e.mod.Value
}

// Status is a layered attribute. The modifier list is copy-on-write: a read
// folds the slice it started with even if a modifier function registers or
// removes modifiers mid-fold.
type Status struct {
	key  string
	base float64
	mods []*entry
	seq  uint64
}

// New creates a status with the given base value and no modifiers.
func New(key string, base float64) *Status {
	return &Status{key: key, base: base}
}

// Key returns the status key.
func (s *Status) Key() string { return s.key }

// BaseValue returns the raw base value, before any modifier.
func (s *Status) BaseValue() float64 { return s.base }

// SetBase replaces the raw base value.
func (s *Status) SetBase(v float64) { s.base = v }

// Len returns the number of active modifiers.
func (s *Status) Len() int { return len(s.mods) }

// Base returns the layered base: the base value folded with LayerBase modifiers.
func (s *Status) Base() float64 {
	return fold(s.base, s.mods, LayerBase)
}

// Value returns the effective value.
func (s *Status) Value() float64 {
	mods := s.mods
	return fold(fold(s.base, mods, LayerBase), mods, LayerCurrent)
}

// Flag reads the status as a boolean (non-zero is true).
func (s *Status) Flag() bool {
	return s.Value() != 0
}

// Add registers a modifier and returns its removal handle.
func (s *Status) Add(m Modifier) (*handle.Handle, error) {
	if m.Kind == Func && m.Func == nil {
		return nil, fmt.Errorf("status %s: %w", s.key, ErrNoFunc)
	}

	s.seq++
	e := &entry{id: s.seq, mod: m}
	if m.Mode == Snapshot {
		// Resolve before freezing: value() reads amount once frozen is set.
		switch m.Kind {
		case Func:
			in := s.layerValue(m.Layer)
			e.amount = m.Func(in) - in
		default:
			e.amount = e.value()
		}
		e.frozen = true
	}

	mods := make([]*entry, len(s.mods), len(s.mods)+1)
	copy(mods, s.mods)
	s.mods = append(mods, e)

	id := e.id
	return handle.New(func() { s.remove(id) }), nil
}

// layerValue is the output of the given layer's fold right now.
func (s *Status) layerValue(l Layer) float64 {
	if l == LayerBase {
		return s.Base()
	}
	return s.Value()
}

func (s *Status) remove(id uint64) {
	for i, e := range s.mods {
		if e.id != id {
			continue
		}
		mods := make([]*entry, 0, len(s.mods)-1)
		mods = append(mods, s.mods[:i]...)
		mods = append(mods, s.mods[i+1:]...)
		s.mods = mods
		return
	}
}

// fold applies one layer: additive sum, then multipliers, then functions.
func fold(start float64, mods []*entry, layer Layer) float64 {
	v := start
	for _, e := range mods {
		if e.mod.Layer == layer && e.mod.Kind == Add {
			v += e.value()
		}
	}
	for _, e := range mods {
		if e.mod.Layer == layer && e.mod.Kind == Mul {
			v *= e.value()
		}
	}
	for _, e := range mods {
		if e.mod.Layer != layer || e.mod.Kind != Func {
			continue
		}
		if e.frozen {
			v += e.amount
		} else {
			v = e.mod.Func(v)
		}
	}
	return v
}
