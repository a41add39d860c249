package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/save"
	"github.com/nathoo/rulecore/engine/state"
	"github.com/nathoo/rulecore/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
}

// Model is the Bubble Tea model for the rulecore TUI.
type Model struct {
	engine  *engine.Engine
	defs    *state.Defs
	opts    engine.Options
	chooser *chooser
	ctx     context.Context
	cancel  context.CancelFunc

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated narrative lines (unstyled, for re-wrapping)
	bar      string    // status bar, rendered while the engine is idle

	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
	busy     bool          // a step is running in the background
	pending  *types.Prompt // the step is waiting on this prompt
	saveDir  string
}

// gameOutputMsg carries output into the Update loop.
type gameOutputMsg struct {
	input    string   // echoed player input (empty for intro)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// stepDoneMsg carries the result of a background engine step.
type stepDoneMsg struct {
	result types.Result
}

// promptMsg asks the player to answer a choice raised mid-step.
type promptMsg struct {
	prompt types.Prompt
}

// chooser hands engine prompts to the Update loop and waits for answers.
type chooser struct {
	prompts chan types.Prompt
	answers chan types.Answer
}

func newChooser() *chooser {
	return &chooser{
		prompts: make(chan types.Prompt),
		answers: make(chan types.Answer, 1),
	}
}

func (c *chooser) Choose(ctx context.Context, p types.Prompt) (types.Answer, error) {
	select {
	case c.prompts <- p:
	case <-ctx.Done():
		return types.Answer{}, ctx.Err()
	}
	select {
	case a := <-c.answers:
		return a, nil
	case <-ctx.Done():
		return types.Answer{}, ctx.Err()
	}
}

// wait returns a command that delivers the next prompt.
func (c *chooser) wait() tea.Cmd {
	return func() tea.Msg {
		return promptMsg{prompt: <-c.prompts}
	}
}

// New creates a TUI model and the engine it drives.
func New(defs *state.Defs, opts engine.Options) (Model, error) {
	ch := newChooser()
	opts.Chooser = ch
	eng, err := engine.New(defs, opts)
	if err != nil {
		return Model{}, err
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	ctx, cancel := context.WithCancel(context.Background())
	home, _ := os.UserHomeDir()
	return Model{
		engine:  eng,
		defs:    defs,
		opts:    opts,
		chooser: ch,
		ctx:     ctx,
		cancel:  cancel,
		input:   ti,
		history: NewHistory(100),
		saveDir: filepath.Join(home, ".rulecore", "saves"),
	}, nil
}

// Run starts the Bubble Tea program.
func Run(defs *state.Defs, opts engine.Options, saveDir string) error {
	m, err := New(defs, opts)
	if err != nil {
		return err
	}
	if saveDir != "" {
		m.saveDir = saveDir
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

// Init returns the initial commands: intro output and the prompt listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput(), m.chooser.wait())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		g := m.defs.Game
		lines := []string{g.Title + " v" + g.Version + " by " + g.Author, ""}
		lines = append(lines, m.engine.Intro().Output...)
		return gameOutputMsg{lines: lines}
	}
}

// Update handles messages (key presses, window resize, game output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshBar()
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case gameOutputMsg:
		m = m.appendOutput(msg)

	case stepDoneMsg:
		m.busy = false
		m.pending = nil
		m.input.Prompt = "> "
		m = m.appendResult(msg.result)

	case promptMsg:
		p := msg.prompt
		m.pending = &p
		m.input.Prompt = "? "
		m = m.appendOutput(gameOutputMsg{lines: promptLines(p)})
		// Re-arm for the next prompt of this or a later step.
		return m, m.chooser.wait()
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

func promptLines(p types.Prompt) []string {
	text := p.Text
	if text == "" {
		text = "Choose:"
	}
	lines := []string{text}
	for i, opt := range p.Options {
		lines = append(lines, fmt.Sprintf("  %d) %s", i+1, opt))
	}
	return lines
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	if m.pending != nil {
		return m.answer(input)
	}
	if m.busy {
		return m, nil
	}

	m.history.ResetCursor()

	// Handle "again" / "g": replay the newest battle command.
	if isRepeat(input) {
		last, ok := m.history.Last()
		if !ok {
			m = m.appendOutput(gameOutputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = last
	} else {
		m.history.Record(input)
	}

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(gameOutputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.cancel()
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// Game command: the step runs off the Update loop so a choice prompt can
	// come back through it.
	m.rawLines = append(m.rawLines, rawLine{text: "> " + input, isInput: true})
	m.refreshViewport()
	m.busy = true
	eng, ctx := m.engine, m.ctx
	return m, func() tea.Msg {
		return stepDoneMsg{result: eng.StepContext(ctx, input)}
	}
}

// answer parses 1-based picks for the pending prompt and hands them to the
// waiting step.
func (m Model) answer(input string) (tea.Model, tea.Cmd) {
	p := *m.pending
	count := max(p.Count, 1)
	fields := strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' })

	var picks []int
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(p.Options) {
			picks = nil
			break
		}
		picks = append(picks, n-1)
	}
	if len(picks) == 0 || len(picks) > count {
		m = m.appendOutput(gameOutputMsg{
			input:    input,
			lines:    []string{fmt.Sprintf("Pick up to %d of 1-%d.", count, len(p.Options))},
			isSystem: true,
		})
		return m, nil
	}

	m.rawLines = append(m.rawLines, rawLine{text: "? " + input, isInput: true})
	m.refreshViewport()
	m.pending = nil
	m.input.Prompt = "> "
	m.chooser.answers <- types.Answer{Picks: picks}
	return m, nil
}

// appendResult adds a step's output, faults and optional trace.
func (m Model) appendResult(result types.Result) Model {
	for _, line := range result.Output {
		m.rawLines = append(m.rawLines, rawLine{text: line, kind: classifyLine(line)})
	}
	for _, f := range result.Faults {
		m.rawLines = append(m.rawLines, rawLine{text: "fault: " + f, isSystem: true})
	}
	if m.trace {
		for _, line := range m.formatTrace(result) {
			m.rawLines = append(m.rawLines, rawLine{text: line, kind: kindTrace})
		}
	}
	m.rawLines = append(m.rawLines, rawLine{})
	m.refreshBar()
	m.refreshViewport()
	return m
}

// appendOutput adds lines to the narrative and refreshes the viewport.
func (m Model) appendOutput(msg gameOutputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshBar()
	m.refreshViewport()

	return m
}

// refreshBar re-renders the status bar. The engine is only read while no
// step runs or while the running step is parked on a prompt.
func (m *Model) refreshBar() {
	if !m.ready || (m.busy && m.pending == nil) {
		return
	}
	m.bar = m.renderStatusBar()
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.bar + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/help":
		return m.cmdHelp(), false

	case "/state":
		return m.cmdState(), false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	data, err := save.Save(m.engine)
	if err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	path := filepath.Join(m.saveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	return []string{fmt.Sprintf("Game saved to %s.", name)}
}

func (m *Model) cmdLoad(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(m.saveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	sd, err := save.Load(data)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	eng, err := save.Restore(m.defs, sd, m.opts)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}
	m.engine = eng

	output := []string{fmt.Sprintf("Game loaded from %s (turn %d).", name, sd.Turn)}
	result := m.engine.Step("status")
	output = append(output, result.Output...)
	return output
}

func (m *Model) cmdHelp() []string {
	return []string{
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
		"",
		"When asked to choose, type the option numbers.",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

func (m *Model) cmdState() []string {
	s := m.engine.State
	output := []string{
		fmt.Sprintf("Turn: %d", s.Turn),
		fmt.Sprintf("Seed: %d  RNG position: %d", s.Seed, s.RNGPosition),
		fmt.Sprintf("Commands: %d  Choices: %d", len(s.CommandLog), len(s.Choices)),
	}
	if s.Outcome != types.Ongoing {
		output = append(output, fmt.Sprintf("Outcome: %s", s.Outcome))
	}
	for _, es := range m.engine.Snapshot().Entities {
		output = append(output, fmt.Sprintf("%s (%s): statuses %v currents %v", es.Label, es.DefID, es.Statuses, es.Currents))
	}
	return output
}

func (m *Model) formatTrace(result types.Result) []string {
	lines := make([]string, 0, len(result.Trace))
	for _, t := range result.Trace {
		lines = append(lines, "[trace] "+t)
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
