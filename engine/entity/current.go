package entity

import (
	"errors"
	"fmt"
)

type boundKind int8

const (
	unbounded boundKind = iota
	fixed
	statusRef
)

// Bound is one end of a current's range: none, a fixed number, or the
// effective value of a status on the owning entity.
type Bound struct {
	kind   boundKind
	value  float64
	status string
}

// Unbounded returns an open bound.
func Unbounded() Bound { return Bound{} }

// Fixed returns a constant bound.
func Fixed(v float64) Bound { return Bound{kind: fixed, value: v} }

// StatusRef returns a bound that tracks a status's effective value.
func StatusRef(key string) Bound { return Bound{kind: statusRef, status: key} }

// Resolve returns the bound's value on e. ok is false for an open bound and
// for a status reference the entity cannot satisfy, which also returns an error.
func (b Bound) Resolve(e *Entity) (v float64, ok bool, err error) {
	switch b.kind {
	case fixed:
		return b.value, true, nil
	case statusRef:
		v, ok := e.StatusValue(b.status)
		if !ok {
			return 0, false, fmt.Errorf("bound %s on %s: %w", b.status, e, ErrUnknownStatus)
		}
		return v, true, nil
	default:
		return 0, false, nil
	}
}

// BoundaryFunc runs when a current lands on one of its bounds.
type BoundaryFunc func(cause *Action, e *Entity, c *Current)

// Current is a bounded runtime quantity such as health or energy. Its value
// only changes through Entity.ChangeCurrent.
type Current struct {
	key   string
	value float64

	Min          Bound
	Max          Bound
	AllowOverMin bool
	AllowOverMax bool
	OnReachMin   BoundaryFunc
	OnReachMax   BoundaryFunc
}

// NewCurrent creates a current with a starting value. The start is not
// clamped and fires no callback.
func NewCurrent(key string, start float64, lo, hi Bound) *Current {
	return &Current{key: key, value: start, Min: lo, Max: hi}
}

// Key returns the current key.
func (c *Current) Key() string { return c.key }

// Value returns the stored value.
func (c *Current) Value() float64 { return c.value }

// ChangeCurrent sets a current to next, clamped to its bounds unless the
// matching AllowOver flag is set, and fires OnReachMin/OnReachMax when the
// value moves onto a bound from inside the range. Callbacks run before
// ChangeCurrent returns and may change the same current again.
//
// The returned value is what this call wrote. An unknown key is a no-op
// returning ErrUnknownCurrent. A bound that cannot be resolved is skipped and
// reported alongside the applied value.
func (e *Entity) ChangeCurrent(key string, next float64, cause *Action) (float64, error) {
	c, ok := e.currents[key]
	if !ok {
		return 0, fmt.Errorf("%s on %s: %w", key, e, ErrUnknownCurrent)
	}

	prev := c.value
	lo, hasLo, errLo := c.Min.Resolve(e)
	hi, hasHi, errHi := c.Max.Resolve(e)

	v := next
	if hasLo && !c.AllowOverMin && v < lo {
		v = lo
	}
	if hasHi && !c.AllowOverMax && v > hi {
		v = hi
	}
	c.value = v

	if hasLo && prev > lo && v == lo && c.OnReachMin != nil {
		c.OnReachMin(cause, e, c)
	}
	if hasHi && prev < hi && v == hi && c.OnReachMax != nil {
		c.OnReachMax(cause, e, c)
	}

	return v, errors.Join(errLo, errHi)
}

// AddToCurrent changes a current by delta.
func (e *Entity) AddToCurrent(key string, delta float64, cause *Action) (float64, error) {
	c, ok := e.currents[key]
	if !ok {
		return 0, fmt.Errorf("%s on %s: %w", key, e, ErrUnknownCurrent)
	}
	return e.ChangeCurrent(key, c.value+delta, cause)
}
