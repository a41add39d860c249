package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/rulecore/engine/state"
)

// collector accumulates Lua definitions during file execution.
type collector struct {
	game     *lua.LTable
	entities []rawEntity
	actions  []rawAction
	order    int
}

func (c *collector) nextSourceOrder() int {
	c.order++
	return c.order
}

// Load reads the battle content in dir and returns the immutable Defs.
//
// Content runs once, here, in a throwaway VM: triggers and effects are
// compiled to data, so no Lua executes during a battle. A save replays its
// command log against a fresh Load of the same directory, so loading must
// produce the same Defs every time. Validation warnings go to the default
// slog logger.
func Load(dir string) (*state.Defs, error) {
	files, err := discover(dir)
	if err != nil {
		return nil, err
	}

	coll := &collector{}
	if err := run(dir, files, coll); err != nil {
		return nil, err
	}

	defs, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling battle content: %w", err)
	}
	if err := validate(defs, slog.Default()); err != nil {
		return nil, err
	}
	return defs, nil
}

// discover lists the content files of dir in execution order: game.lua
// first, then the rest by name. Hidden files (editor swap files, macOS
// resource forks) are skipped.
func discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading content directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".lua") {
			continue
		}
		files = append(files, name)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	return sortedLuaFiles(files), nil
}

// run executes files in a sandboxed VM with the content API installed.
// Constructors append to coll; nothing else survives the VM.
func run(dir string, files []string, coll *collector) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)
	sandbox(L)
	registerAPI(L, coll)

	for _, f := range files {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return fmt.Errorf("executing %s: %w", f, err)
		}
	}
	return nil
}

// openSafeLibs opens the libraries content may use to build tables:
// base, table, string and math. os, io, package and debug stay closed.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox strips what lets content reach the filesystem, bypass metatables,
// or vary between loads.
func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}

	// math.random draws from the process-wide source, so two loads of the
	// same content could build different Defs and break save replay.
	// Battle randomness belongs to the engine's seeded RNG.
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("random", lua.LNil)
		tbl.RawSetString("randomseed", lua.LNil)
	}
}
