package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/entity"
)

// gauge renders a current as "value/max", or just the value when unbounded.
func gauge(en *entity.Entity, key string) (string, bool) {
	c, ok := en.Current(key)
	if !ok {
		return "", false
	}
	v := strconv.FormatFloat(c.Value(), 'f', -1, 64)
	if hi, ok, err := c.Max.Resolve(en); err == nil && ok {
		return v + "/" + strconv.FormatFloat(hi, 'f', -1, 64), true
	}
	return v, true
}

// renderStatusBar produces a full-width inverted status line showing the
// player's health and energy, each enemy's health, and the turn count.
func (m Model) renderStatusBar() string {
	eng := m.engine

	left := " " + eng.Player.String()
	if hp, ok := gauge(eng.Player, effects.Health); ok {
		left += " HP " + hp
	}
	if en, ok := gauge(eng.Player, engine.Energy); ok {
		left += " EN " + en
	}

	var foes []string
	for _, e := range eng.Enemies {
		if e.Flag(effects.Dead) {
			foes = append(foes, e.String()+" x")
			continue
		}
		hp, _ := gauge(e, effects.Health)
		foes = append(foes, strings.TrimSpace(e.String()+" "+hp))
	}

	right := fmt.Sprintf("T:%d ", eng.State.Turn)
	if m.pending != nil {
		right = "choose | " + right
	}

	// Show enemy health if it fits, otherwise just the count left standing.
	if len(foes) > 0 {
		full := " | " + strings.Join(foes, ", ")
		count := fmt.Sprintf(" | Foes: %d", len(eng.Enemies)-deadCount(eng.Enemies))
		switch {
		case lipgloss.Width(left)+lipgloss.Width(full)+lipgloss.Width(right)+2 < m.width:
			left += full
		case lipgloss.Width(left)+lipgloss.Width(count)+lipgloss.Width(right) <= m.width:
			left += count
		}
	}

	if room := m.width - lipgloss.Width(right); lipgloss.Width(left) > room {
		left = ansi.Truncate(left, max(room, 0), "…")
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	// The layout reserves exactly one row for the bar.
	bar := ansi.Truncate(left+strings.Repeat(" ", gap)+right, m.width, "")
	return styleStatusBar.Width(m.width).MaxHeight(1).Render(bar)
}

func deadCount(es []*entity.Entity) int {
	n := 0
	for _, e := range es {
		if e.Flag(effects.Dead) {
			n++
		}
	}
	return n
}
