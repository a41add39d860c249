// Package resolve maps names typed by the player to battle participants
// and playable actions.
package resolve

import (
	"fmt"
	"strings"
)

// Candidate is something a name can resolve to.
type Candidate struct {
	ID   string
	Name string
}

// AmbiguityError indicates multiple candidates matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no candidate matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("there is no %q here", e.Name)
}

// Resolve maps a name to the ID of exactly one candidate. An exact ID match
// wins outright; otherwise names are compared case-insensitively.
func Resolve(name string, cands []Candidate) (string, error) {
	for _, c := range cands {
		if c.ID == name {
			return c.ID, nil
		}
	}

	nameLower := strings.ToLower(strings.TrimSpace(name))
	var matches []Candidate
	for _, c := range cands {
		if matchesName(c, nameLower) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0].ID, nil
	}

	// Prefer a single full-name match over partial ones.
	var exact []Candidate
	for _, c := range matches {
		if strings.ToLower(c.Name) == nameLower {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		return exact[0].ID, nil
	}

	names := make([]string, len(matches))
	for i, c := range matches {
		names[i] = c.Name
	}
	return "", &AmbiguityError{Name: name, Candidates: names}
}

// matchesName checks if a candidate's name matches the query (case-insensitive).
// Supports exact match, word-based partial match, and ID match.
func matchesName(c Candidate, nameLower string) bool {
	entityNameLower := strings.ToLower(c.Name)
	// Exact match.
	if entityNameLower == nameLower {
		return true
	}
	// Word-based partial match: query matches any word in the name.
	// e.g. "blade" matches "heavy blade", "slime" matches "acid slime".
	for _, word := range strings.Fields(entityNameLower) {
		if word == nameLower {
			return true
		}
	}
	idLower := strings.ToLower(c.ID)
	if idLower == nameLower {
		return true
	}
	// Underscore normalization: "heavy blade" matches ID "heavy_blade".
	if strings.ReplaceAll(nameLower, " ", "_") == idLower {
		return true
	}
	return false
}
