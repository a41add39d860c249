// Package save implements JSON serialization of a battle and its restoration
// by deterministic replay.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/types"
)

// FormatVersion is written into every save.
const FormatVersion = 1

var (
	ErrDesync    = errors.New("replay does not reproduce the saved battle")
	ErrWrongGame = errors.New("save belongs to another game")
	ErrFormat    = errors.New("unsupported save format")
)

// SaveData is the JSON-serializable save format. The battle itself is not
// stored: it is rebuilt from the seed, the command log and the recorded
// choices, and the snapshot verifies the result.
type SaveData struct {
	Format      int            `json:"format"`
	Version     string         `json:"version"`
	Game        string         `json:"game"`
	Turn        int            `json:"turn"`
	Seed        int64          `json:"seed"`
	RNGPosition int64          `json:"rng_position"`
	CommandLog  []string       `json:"command_log"`
	Choices     [][]int        `json:"choices"`
	Snapshot    types.Snapshot `json:"snapshot"`
}

// Save serializes a battle to JSON bytes.
func Save(e *engine.Engine) ([]byte, error) {
	s := e.State
	data := SaveData{
		Format:      FormatVersion,
		Version:     e.Defs.Game.Version,
		Game:        e.Defs.Game.Title,
		Turn:        s.Turn,
		Seed:        s.Seed,
		RNGPosition: s.RNGPosition,
		CommandLog:  s.CommandLog,
		Choices:     s.Choices,
		Snapshot:    e.Snapshot(),
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	if sd.Format != FormatVersion {
		return nil, fmt.Errorf("format %d: %w", sd.Format, ErrFormat)
	}
	// Ensure slices are never nil after load.
	if sd.CommandLog == nil {
		sd.CommandLog = []string{}
	}
	if sd.Choices == nil {
		sd.Choices = [][]int{}
	}
	return &sd, nil
}

// Restore rebuilds the saved battle: a fresh engine with the saved seed
// replays the command log, answering prompts from the recorded choices. The
// replayed snapshot and RNG position must match the saved ones.
func Restore(defs *state.Defs, sd *SaveData, opts engine.Options) (*engine.Engine, error) {
	if sd.Game != defs.Game.Title {
		return nil, fmt.Errorf("%q, loaded %q: %w", sd.Game, defs.Game.Title, ErrWrongGame)
	}

	opts.Seed = sd.Seed
	opts.Replay = sd.Choices
	e, err := engine.New(defs, opts)
	if err != nil {
		return nil, err
	}
	for _, cmd := range sd.CommandLog {
		e.Step(cmd)
	}

	if e.State.RNGPosition != sd.RNGPosition {
		return nil, fmt.Errorf("rng position %d, saved %d: %w", e.State.RNGPosition, sd.RNGPosition, ErrDesync)
	}
	if got := e.Snapshot(); !reflect.DeepEqual(got, sd.Snapshot) {
		return nil, fmt.Errorf("snapshot at turn %d: %w", got.Turn, ErrDesync)
	}
	return e, nil
}
