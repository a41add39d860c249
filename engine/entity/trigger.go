package entity

import (
	"fmt"
	"sort"

	"github.com/nathoo/rulecore/engine/handle"
	"github.com/nathoo/rulecore/types"
)

// TriggerFunc is a trigger callback. unit is the effect unit that caused
// the firing, or nil when the trigger fires on the action as a whole.
type TriggerFunc func(rt Runtime, a *Action, unit *types.EffectUnit, level int)

// TriggerSpec describes one trigger registration.
type TriggerSpec struct {
	When  types.Phase
	How   types.Role
	Event string
	Level int
	Call  TriggerFunc
	// Only narrows important replacement to entries sharing this key.
	Only string
}

// Trigger is a registered entry as seen by the dispatcher.
type Trigger struct {
	Level     int
	Call      TriggerFunc
	Important string
	Only      string
	Seq       uint64
}

type triggerKey struct {
	when  types.Phase
	how   types.Role
	event string
}

type importantKey struct {
	key  string
	only string
}

type triggerEntry struct {
	bucket    triggerKey
	trigger   Trigger
	important importantKey
	h         *handle.Handle
}

// TriggerTable is an entity's registry of (phase, role, event) → callbacks.
// Entries keep registration order within a bucket.
type TriggerTable struct {
	buckets   map[triggerKey][]*triggerEntry
	important map[importantKey]*triggerEntry
	seq       uint64
}

// NewTriggerTable creates an empty table.
func NewTriggerTable() *TriggerTable {
	return &TriggerTable{
		buckets:   map[triggerKey][]*triggerEntry{},
		important: map[importantKey]*triggerEntry{},
	}
}

func validate(spec TriggerSpec) error {
	if spec.Call == nil {
		return ErrNoCallback
	}
	if spec.When != types.Before && spec.When != types.After {
		return fmt.Errorf("when %q: %w", spec.When, ErrBadTrigger)
	}
	switch spec.How {
	case types.Make, types.Via, types.Take:
	default:
		return fmt.Errorf("how %q: %w", spec.How, ErrBadTrigger)
	}
	if spec.Event == "" {
		return fmt.Errorf("empty event key: %w", ErrBadTrigger)
	}
	return nil
}

// Register adds a trigger and returns its removal handle.
func (t *TriggerTable) Register(spec TriggerSpec) (*handle.Handle, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}
	t.seq++
	return t.insert(spec, t.seq, importantKey{}), nil
}

// RegisterImportant adds a trigger that is unique per (key, spec.Only) on
// this table. An existing entry with the same pair is removed first: its
// handle is revoked without running any cleanup, and the new entry takes its
// place in registration order.
func (t *TriggerTable) RegisterImportant(key string, spec TriggerSpec) (*handle.Handle, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("empty important key: %w", ErrBadTrigger)
	}

	ik := importantKey{key: key, only: spec.Only}
	var seq uint64
	if old, ok := t.important[ik]; ok {
		seq = old.trigger.Seq
		old.h.Revoke()
		t.remove(old)
	} else {
		t.seq++
		seq = t.seq
	}
	return t.insert(spec, seq, ik), nil
}

func (t *TriggerTable) insert(spec TriggerSpec, seq uint64, ik importantKey) *handle.Handle {
	e := &triggerEntry{
		bucket: triggerKey{when: spec.When, how: spec.How, event: spec.Event},
		trigger: Trigger{
			Level:     spec.Level,
			Call:      spec.Call,
			Important: ik.key,
			Only:      spec.Only,
			Seq:       seq,
		},
		important: ik,
	}
	e.h = handle.New(func() { t.remove(e) })

	list := t.buckets[e.bucket]
	i := sort.Search(len(list), func(i int) bool { return list[i].trigger.Seq > seq })
	next := make([]*triggerEntry, 0, len(list)+1)
	next = append(next, list[:i]...)
	next = append(next, e)
	next = append(next, list[i:]...)
	t.buckets[e.bucket] = next

	if ik.key != "" {
		t.important[ik] = e
	}
	return e.h
}

func (t *TriggerTable) remove(e *triggerEntry) {
	list := t.buckets[e.bucket]
	for i, cur := range list {
		if cur != e {
			continue
		}
		next := make([]*triggerEntry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(t.buckets, e.bucket)
		} else {
			t.buckets[e.bucket] = next
		}
		break
	}
	if e.important.key != "" && t.important[e.important] == e {
		delete(t.important, e.important)
	}
}

// Match returns a point-in-time copy of the entries for (when, how, event),
// in registration order.
func (t *TriggerTable) Match(when types.Phase, how types.Role, event string) []Trigger {
	list := t.buckets[triggerKey{when: when, how: how, event: event}]
	out := make([]Trigger, len(list))
	for i, e := range list {
		out[i] = e.trigger
	}
	return out
}

// Len returns the number of registered entries.
func (t *TriggerTable) Len() int {
	n := 0
	for _, list := range t.buckets {
		n += len(list)
	}
	return n
}

// HasImportant reports whether an important entry is registered for key/only.
func (t *TriggerTable) HasImportant(key, only string) bool {
	_, ok := t.important[importantKey{key: key, only: only}]
	return ok
}

// Clear releases every entry.
func (t *TriggerTable) Clear() {
	var all []*triggerEntry
	for _, list := range t.buckets {
		all = append(all, list...)
	}
	for _, e := range all {
		e.h.Release()
	}
}
