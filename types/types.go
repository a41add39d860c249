// Package types defines the shared data structures for the rulecore engine.
// This package contains only type definitions, with no logic or methods.
package types

// Phase is the point of an action's dispatch at which a trigger fires.
type Phase string

const (
	Before Phase = "before"
	After  Phase = "after"
)

// Role selects which participant of an action a trigger listens on.
// Make fires on the source, Via on the medium, Take on the target.
type Role string

const (
	Make Role = "make"
	Via  Role = "via"
	Take Role = "take"
)

// Capability tags an entity with what it can do or be used as.
type Capability string

const (
	CapPlayer Capability = "player"
	CapEnemy  Capability = "enemy"
	CapCard   Capability = "card"
	CapOrgan  Capability = "organ"
	CapRelic  Capability = "relic"
	CapPotion Capability = "potion"
	CapPile   Capability = "pile"
)

// EffectUnit is one effect invocation queued on an action.
type EffectUnit struct {
	Key    string
	Params map[string]any
}

// Intent is the parsed representation of a sandbox command.
type Intent struct {
	Verb   string
	Object string // action id for "play"
	Target string // optional entity name
}

// Result is the output of a single engine step.
type Result struct {
	Output []string
	Trace  []string
	Faults []string
}

// Outcome is how a battle ended.
type Outcome string

const (
	Ongoing Outcome = ""
	Victory Outcome = "victory"
	Defeat  Outcome = "defeat"
)

// State is the engine's serializable bookkeeping. Entity values live on the
// entities themselves and are captured by Snapshot.
type State struct {
	Turn        int
	Seed        int64
	RNGPosition int64
	CommandLog  []string
	Choices     [][]int // answers given to choice prompts, in order
	Outcome     Outcome
}

// EntitySnapshot is the observable state of one entity.
type EntitySnapshot struct {
	DefID    string             `json:"def_id"`
	Label    string             `json:"label"`
	Statuses map[string]float64 `json:"statuses"`
	Currents map[string]float64 `json:"currents"`
}

// Snapshot is the observable state of a battle, in spawn order.
type Snapshot struct {
	Turn     int              `json:"turn"`
	Outcome  Outcome          `json:"outcome"`
	Entities []EntitySnapshot `json:"entities"`
}

// Prompt is a request for player input raised by an effect handler.
type Prompt struct {
	Kind    string
	Text    string
	Options []string
	Count   int
}

// Answer is the resolved player input for a Prompt.
type Answer struct {
	Picks []int
}

// Condition is a predicate that must hold for a content trigger to run.
type Condition struct {
	Type   string         // "status_at_least", "current_at_most", "has_capability", etc.
	Params map[string]any // condition-specific parameters
	Inner  *Condition     // for Not(): the negated inner condition
}

// TriggerOp is one data-defined step a content trigger performs.
type TriggerOp struct {
	Type   string // "adjust", "scale", "cancel", "set_info", "emit", "say"
	Params map[string]any
}

// TriggerDef is a content-defined trigger attached to an entity.
type TriggerDef struct {
	When       Phase
	How        Role
	Event      string
	Level      int
	Important  string
	Only       string
	Conditions []Condition
	Ops        []TriggerOp
}

// BoundDef is a current bound: a fixed number or a status key.
type BoundDef struct {
	Value  float64
	Status string
	Set    bool
}

// CurrentDef describes a bounded runtime quantity of an entity.
type CurrentDef struct {
	Key          string
	Start        BoundDef
	Min          BoundDef
	Max          BoundDef
	AllowOverMin bool
	AllowOverMax bool
}

// BehaviorEntry is one weighted choice in an enemy's behavior table.
type BehaviorEntry struct {
	Action string
	Weight int
}

// EntityDef is the static configuration an entity is spawned from.
type EntityDef struct {
	ID           string
	Label        string
	Capabilities []Capability
	Statuses     map[string]float64
	Currents     []CurrentDef
	Triggers     []TriggerDef
	Behavior     []BehaviorEntry
	SourceOrder  int
}

// ActionDef is a named, content-defined action template.
type ActionDef struct {
	ID      string
	Key     string // event key the action dispatches under; defaults to ID
	Label   string
	Medium  string // entity id used as medium, optional
	Target  string // "self" targets the source; otherwise an opponent
	Cost    float64
	Uses    int // 0 means unlimited
	Effects []EffectUnit
}

// GameDef holds battle metadata from Lua.
type GameDef struct {
	Title     string
	Author    string
	Version   string
	Player    string   // player entity id
	Enemies   []string // enemy entity ids, in turn order
	Equipment []string // relic, organ and potion ids held by the player
	Intro     string
}
