// Package entity holds the participants of the rules engine and the values
// that flow between them: entities with their statuses, currents and trigger
// tables, and the actions dispatched against them.
package entity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nathoo/rulecore/types"
)

var (
	ErrUnknownCurrent      = errors.New("unknown current")
	ErrUnknownStatus       = errors.New("unknown status")
	ErrDuplicateCurrent    = errors.New("duplicate current")
	ErrCancelOutsideBefore = errors.New("cancel outside before phase")
	ErrSealed              = errors.New("action already dispatched")
	ErrNoCallback          = errors.New("trigger without callback")
	ErrBadTrigger          = errors.New("invalid trigger spec")
	ErrNoUnit              = errors.New("no such effect unit")
	ErrNotNumber           = errors.New("param is not a number")
)

// Rand is the injected random source consumed by handlers.
type Rand interface {
	Intn(n int) int
}

// Chooser resolves player input. It blocks until the player answers or ctx
// is cancelled.
type Chooser interface {
	Choose(ctx context.Context, p types.Prompt) (types.Answer, error)
}

// Runtime is the timeline an action is being dispatched on. Trigger
// callbacks and effect handlers receive it instead of reaching for globals.
type Runtime interface {
	Context() context.Context
	// Dispatch runs a nested action to completion before returning.
	Dispatch(a *Action)
	Logger() *slog.Logger
	Rand() Rand
	Choose(p types.Prompt) (types.Answer, error)
	// Say appends a human-readable line to the step output.
	Say(line string)
	// Report records an error raised by a callback. It never unwinds the
	// dispatch.
	Report(err error)
}

// Number converts a param value to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
