package entity

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/nathoo/rulecore/engine/handle"
	"github.com/nathoo/rulecore/engine/status"
	"github.com/nathoo/rulecore/types"
)

// Entity is a participant in the rules engine: player, enemy, card, organ,
// relic or potion. It exclusively owns its statuses, currents and triggers.
type Entity struct {
	id    uuid.UUID
	defID string
	Label string

	caps     map[types.Capability]bool
	statuses map[string]*status.Status
	currents map[string]*Current
	triggers *TriggerTable
}

// New creates an empty entity.
func New(id uuid.UUID, defID, label string, caps ...types.Capability) *Entity {
	e := &Entity{
		id:       id,
		defID:    defID,
		Label:    label,
		caps:     map[types.Capability]bool{},
		statuses: map[string]*status.Status{},
		currents: map[string]*Current{},
		triggers: NewTriggerTable(),
	}
	for _, c := range caps {
		e.caps[c] = true
	}
	return e
}

// ID returns the entity's unique id.
func (e *Entity) ID() uuid.UUID { return e.id }

// DefID returns the content id the entity was spawned from.
func (e *Entity) DefID() string { return e.defID }

func (e *Entity) String() string {
	if e == nil {
		return "-"
	}
	if e.Label != "" {
		return e.Label
	}
	return e.defID
}

// Has reports whether the entity carries a capability.
func (e *Entity) Has(c types.Capability) bool { return e.caps[c] }

// Grant adds a capability.
func (e *Entity) Grant(c types.Capability) { e.caps[c] = true }

// Triggers returns the entity's trigger table.
func (e *Entity) Triggers() *TriggerTable { return e.triggers }

// AddStatus creates a status, or resets the base of an existing one.
func (e *Entity) AddStatus(key string, base float64) *status.Status {
	if s, ok := e.statuses[key]; ok {
		s.SetBase(base)
		return s
	}
	s := status.New(key, base)
	e.statuses[key] = s
	return s
}

// Status returns a status by key.
func (e *Entity) Status(key string) (*status.Status, bool) {
	s, ok := e.statuses[key]
	return s, ok
}

// StatusValue returns the effective value of a status.
func (e *Entity) StatusValue(key string) (float64, bool) {
	s, ok := e.statuses[key]
	if !ok {
		return 0, false
	}
	return s.Value(), true
}

// Flag reads a status as a boolean. Missing statuses are false.
func (e *Entity) Flag(key string) bool {
	s, ok := e.statuses[key]
	return ok && s.Flag()
}

// StatusKeys returns all status keys, sorted.
func (e *Entity) StatusKeys() []string {
	keys := make([]string, 0, len(e.statuses))
	for k := range e.statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AddModifier registers a modifier on a status, creating the status at base
// zero if the entity does not have it yet.
func (e *Entity) AddModifier(key string, m status.Modifier) (*handle.Handle, error) {
	s, ok := e.statuses[key]
	if !ok {
		s = e.AddStatus(key, 0)
	}
	h, err := s.Add(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e, err)
	}
	return h, nil
}

// AddCurrent attaches a current. Keys are unique per entity.
func (e *Entity) AddCurrent(c *Current) error {
	if _, ok := e.currents[c.key]; ok {
		return fmt.Errorf("%s on %s: %w", c.key, e, ErrDuplicateCurrent)
	}
	e.currents[c.key] = c
	return nil
}

// Current returns a current by key.
func (e *Entity) Current(key string) (*Current, bool) {
	c, ok := e.currents[key]
	return c, ok
}

// CurrentValue returns the stored value of a current.
func (e *Entity) CurrentValue(key string) (float64, bool) {
	c, ok := e.currents[key]
	if !ok {
		return 0, false
	}
	return c.value, true
}

// CurrentKeys returns all current keys, sorted.
func (e *Entity) CurrentKeys() []string {
	keys := make([]string, 0, len(e.currents))
	for k := range e.currents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
