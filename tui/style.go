package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleDamage = lipgloss.NewStyle().
			Foreground(lipgloss.Color("209"))

	styleHeal = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	styleOutcome = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81"))

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindDamage
	kindHeal
	kindOutcome
	kindChoice
	kindDialogue
	kindSystem
	kindError
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case line == "Victory!", line == "You have been defeated.",
		strings.HasSuffix(line, " dies."):
		return kindOutcome
	case strings.Contains(line, " damage."):
		return kindDamage
	case strings.Contains(line, " heals "), strings.HasSuffix(line, " rises again."):
		return kindHeal
	case isChoiceLine(line):
		return kindChoice
	case strings.HasPrefix(line, "I don't know"),
		strings.HasPrefix(line, "Not enough"),
		strings.HasPrefix(line, "there is no"),
		strings.HasPrefix(line, "which "),
		strings.HasSuffix(line, " is spent."):
		return kindError
	case containsQuotedSpeech(line):
		return kindDialogue
	default:
		return kindNarration
	}
}

// isChoiceLine matches numbered prompt options like "  2) ice".
func isChoiceLine(line string) bool {
	s := strings.TrimLeft(line, " ")
	if len(s) == len(line) {
		return false
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0 && i < len(s) && s[i] == ')'
}

// containsQuotedSpeech checks if a line contains speech in single quotes.
func containsQuotedSpeech(line string) bool {
	inQuote := false
	quoteLen := 0
	for _, r := range line {
		if r == '\'' {
			if inQuote && quoteLen > 5 {
				return true
			}
			inQuote = !inQuote
			quoteLen = 0
		} else if inQuote {
			quoteLen++
		}
	}
	return false
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindDamage:
		return styleDamage.Render(line)
	case kindHeal:
		return styleHeal.Render(line)
	case kindOutcome:
		return styleOutcome.Render(line)
	case kindChoice:
		return styleChoice.Render(line)
	case kindDialogue:
		return styleDialogue.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarration.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
