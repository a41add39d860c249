// Package effects maps effect keys to handlers. Every effect unit on an
// action resolves here before it runs; handlers touch game state only through
// the entity contracts (statuses, currents, nested dispatch).
package effects

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nathoo/rulecore/engine/entity"
	"github.com/nathoo/rulecore/types"
)

var (
	ErrUnknownEffect   = errors.New("unknown effect")
	ErrMissingParam    = errors.New("missing effect param")
	ErrDuplicateEffect = errors.New("effect already registered")
	ErrNilHandler      = errors.New("nil effect handler")
	ErrNoParticipant   = errors.New("action has no such participant")
)

// Handler executes one effect unit of a dispatched action.
type Handler func(rt entity.Runtime, a *entity.Action, u types.EffectUnit) error

type registration struct {
	handler  Handler
	required []string
}

// Registry is a string-keyed table of effect handlers. Registration is
// validated up front; lookups never mutate it.
type Registry struct {
	handlers map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]registration{}}
}

// Register adds a handler under key. required lists the params every unit
// with this key must carry.
func (r *Registry) Register(key string, h Handler, required ...string) error {
	if key == "" {
		return fmt.Errorf("empty key: %w", ErrUnknownEffect)
	}
	if h == nil {
		return fmt.Errorf("%s: %w", key, ErrNilHandler)
	}
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrDuplicateEffect)
	}
	r.handlers[key] = registration{handler: h, required: required}
	return nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.handlers[key]
	return ok
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Required returns the params a key requires.
func (r *Registry) Required(key string) []string {
	return r.handlers[key].required
}

// Resolve returns the handler for u, or a configuration error when the key
// is unknown or a required param is absent.
func (r *Registry) Resolve(u types.EffectUnit) (Handler, error) {
	reg, ok := r.handlers[u.Key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", u.Key, ErrUnknownEffect)
	}
	for _, p := range reg.required {
		if _, ok := u.Params[p]; !ok {
			return nil, fmt.Errorf("%s.%s: %w", u.Key, p, ErrMissingParam)
		}
	}
	return reg.handler, nil
}

// Validate checks every unit and joins the problems found.
func (r *Registry) Validate(units []types.EffectUnit) error {
	var errs []error
	for _, u := range units {
		if _, err := r.Resolve(u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Float reads a numeric param. Lua numbers arrive as float64, Go callers may
// pass ints.
func Float(u types.EffectUnit, key string) (float64, bool) {
	return entity.Number(u.Params[key])
}

// String reads a string param.
func String(u types.EffectUnit, key string) (string, bool) {
	s, ok := u.Params[key].(string)
	return s, ok
}

// Strings reads a list-of-strings param.
func Strings(u types.EffectUnit, key string) []string {
	switch v := u.Params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Participant picks the entity a unit applies to: the "on" param names the
// role ("source", "medium", "target"); the target is the default.
func Participant(a *entity.Action, u types.EffectUnit) (*entity.Entity, error) {
	role, _ := String(u, "on")
	var e *entity.Entity
	switch role {
	case "", "target":
		e = a.Target
	case "source":
		e = a.Source
	case "medium":
		e = a.Medium
	default:
		return nil, fmt.Errorf("%s on %q: %w", u.Key, role, ErrNoParticipant)
	}
	if e == nil {
		if role == "" {
			role = "target"
		}
		return nil, fmt.Errorf("%s on %s: %w", u.Key, role, ErrNoParticipant)
	}
	return e, nil
}
