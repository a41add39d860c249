// Package tui provides a Bubble Tea terminal UI for the rulecore battle engine.
package tui

import "strings"

// History holds the battle commands typed this session, oldest first, for
// Up/Down recall and for "again". Meta commands, the repeat aliases and
// answers to choice prompts never reach it, so Last is always the command
// a repeat replays.
type History struct {
	cmds   []string
	limit  int
	cursor int // len(cmds) when not navigating
}

// NewHistory creates a history that keeps at most limit commands.
func NewHistory(limit int) *History {
	return &History{cmds: make([]string, 0, limit), limit: limit}
}

// isRepeat reports whether input is one of the repeat aliases.
func isRepeat(input string) bool {
	switch strings.ToLower(input) {
	case "again", "g":
		return true
	}
	return false
}

// Record adds a battle command and reports whether it was one. Whitespace is
// collapsed, and a command equal to the newest entry (ignoring case) is not
// stored twice. Recording ends any Up/Down navigation.
func (h *History) Record(input string) bool {
	cmd := strings.Join(strings.Fields(input), " ")
	if cmd == "" || strings.HasPrefix(cmd, "/") || isRepeat(cmd) {
		return false
	}
	if last, ok := h.Last(); !ok || !strings.EqualFold(last, cmd) {
		h.cmds = append(h.cmds, cmd)
		if len(h.cmds) > h.limit {
			h.cmds = h.cmds[len(h.cmds)-h.limit:]
		}
	}
	h.ResetCursor()
	return true
}

// Last returns the newest battle command.
func (h *History) Last() (string, bool) {
	if len(h.cmds) == 0 {
		return "", false
	}
	return h.cmds[len(h.cmds)-1], true
}

// Prev steps back one command, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.cmds) == 0 {
		return "", false
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.cmds[h.cursor], true
}

// Next steps forward one command. Stepping past the newest returns false and
// leaves navigation.
func (h *History) Next() (string, bool) {
	if h.cursor >= len(h.cmds) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.cmds) {
		return "", false
	}
	return h.cmds[h.cursor], true
}

// ResetCursor leaves navigation, so the next Prev returns the newest command.
func (h *History) ResetCursor() {
	h.cursor = len(h.cmds)
}
