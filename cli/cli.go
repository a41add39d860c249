// Package cli provides terminal I/O, output formatting, choice prompts and
// meta-command dispatch for the rulecore battle engine.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/save"
	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/types"
)

// ErrNoInput is returned to a choice prompt when input ends first.
var ErrNoInput = errors.New("input ended before a choice was made")

// CLI handles terminal interaction with the player.
type CLI struct {
	Engine    *engine.Engine
	Defs      *state.Defs
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	Trace     bool
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat
	opts      engine.Options
	scanner   *bufio.Scanner
}

// New creates a CLI and the engine it drives. The CLI answers the engine's
// choice prompts from the same input it reads commands from.
func New(defs *state.Defs, opts engine.Options) (*CLI, error) {
	home, _ := os.UserHomeDir()
	c := &CLI{
		Defs:    defs,
		In:      os.Stdin,
		Out:     os.Stdout,
		SaveDir: filepath.Join(home, ".rulecore", "saves"),
	}
	opts.Chooser = c
	c.opts = opts

	eng, err := engine.New(defs, opts)
	if err != nil {
		return nil, err
	}
	c.Engine = eng
	return c, nil
}

// Run starts the battle loop. It shows the intro and the opening turn, then
// loops: prompt, input, dispatch, output.
func (c *CLI) Run() {
	c.printResult(c.Engine.Intro())

	for {
		c.print("> ")
		input, ok := c.readLine()
		if !ok {
			break
		}
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return // /quit
			}
			continue
		}

		// "again" / "g" repeats the last game command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		c.printResult(c.Engine.Step(input))
	}
}

func (c *CLI) readLine() (string, bool) {
	if c.scanner == nil {
		c.scanner = bufio.NewScanner(c.In)
	}
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

// Choose prints the prompt's options and reads picks as 1-based numbers
// separated by spaces or commas. Bad input asks again.
func (c *CLI) Choose(ctx context.Context, p types.Prompt) (types.Answer, error) {
	text := p.Text
	if text == "" {
		text = "Choose:"
	}
	c.printLine(text)
	for i, opt := range p.Options {
		c.printLine(fmt.Sprintf("  %d) %s", i+1, opt))
	}

	for {
		if err := ctx.Err(); err != nil {
			return types.Answer{}, err
		}
		c.print("? ")
		line, ok := c.readLine()
		if !ok {
			return types.Answer{}, ErrNoInput
		}
		if c.EchoInput {
			c.printLine(line)
		}
		picks, ok := parsePicks(line, len(p.Options), p.Count)
		if !ok {
			c.printSystem(fmt.Sprintf("Pick up to %d of 1-%d.", max(p.Count, 1), len(p.Options)))
			continue
		}
		return types.Answer{Picks: picks}, nil
	}
}

// parsePicks reads 1-based picks and returns them 0-based.
func parsePicks(line string, options, count int) ([]int, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 || len(fields) > max(count, 1) {
		return nil, false
	}
	picks := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > options {
			return nil, false
		}
		picks = append(picks, n-1)
	}
	return picks, true
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(name string) {
	if name == "" {
		name = "quicksave"
	}

	data, err := save.Save(c.Engine)
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	path := filepath.Join(c.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	c.printSystem(fmt.Sprintf("Game saved to %s.", name))
}

func (c *CLI) cmdLoad(name string) {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(c.SaveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	sd, err := save.Load(data)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	eng, err := save.Restore(c.Defs, sd, c.opts)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.Engine = eng
	c.printSystem(fmt.Sprintf("Game loaded from %s (turn %d).", name, sd.Turn))
	c.printResult(c.Engine.Step("status"))
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]  - Save game (default: quicksave)",
		"  /load [name]  - Load game (default: quicksave)",
		"  /quit         - Exit game",
		"  /help         - Show this help",
		"  /state        - Debug: dump battle state",
		"  /trace        - Toggle dispatch trace output",
		"",
		"Battle commands:",
		"  play <card> [on <target>] (p, use) - Play a card or drink a potion",
		"  end (pass, z)                      - End your turn",
		"  look [target] (l)                  - Look at the enemies",
		"  status (s)                         - Your health, energy and hand",
		"  again (g)                          - Repeat your last command",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdState() {
	s := c.Engine.State
	c.printSystem(fmt.Sprintf("Turn: %d", s.Turn))
	c.printSystem(fmt.Sprintf("Seed: %d  RNG position: %d", s.Seed, s.RNGPosition))
	if s.Outcome != types.Ongoing {
		c.printSystem(fmt.Sprintf("Outcome: %s", s.Outcome))
	}
	c.printSystem(fmt.Sprintf("Commands: %d  Choices: %d", len(s.CommandLog), len(s.Choices)))
	for _, es := range c.Engine.Snapshot().Entities {
		c.printSystem(fmt.Sprintf("%s (%s): statuses %v currents %v", es.Label, es.DefID, es.Statuses, es.Currents))
	}
}

func (c *CLI) printResult(result types.Result) {
	for _, line := range result.Output {
		c.printLine(line)
	}
	for _, f := range result.Faults {
		c.printSystem("fault: " + f)
	}
	if c.Trace {
		for _, line := range result.Trace {
			c.printSystem("trace: " + line)
		}
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
