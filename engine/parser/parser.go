// Package parser converts battle command strings into Intent structs.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strings"

	"github.com/nathoo/rulecore/types"
)

var verbAliases = map[string]string{
	// Play
	"p":     "play",
	"use":   "play",
	"cast":  "play",
	"throw": "play",
	"drink": "play",
	"quaff": "play",

	// End turn
	"pass": "end",
	"wait": "end",
	"z":    "end",
	"done": "end",

	// Look
	"l":     "look",
	"scan":  "look",
	"enemy": "look",

	// Status
	"s":     "status",
	"stats": "status",
	"me":    "status",
	"self":  "status",
}

var prepositions = map[string]bool{
	"on": true, "at": true, "to": true,
	"against": true, "onto": true, "into": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// Parse converts a raw command string into an Intent.
func Parse(input string) types.Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.Intent{}
	}

	words := strings.Fields(strings.ToLower(input))

	// Handle multi-word verb phrases before general parsing.
	words = expandMultiWordVerbs(words)

	// Apply verb aliases.
	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := stripArticles(words[1:])

	// Use the first preposition as a delimiter between object and target.
	object, target := splitOnPreposition(rest)

	return types.Intent{
		Verb:   verb,
		Object: object,
		Target: target,
	}
}

// expandMultiWordVerbs handles "end turn", "look at", "play card" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}

	switch words[0] {
	case "end", "pass":
		if words[1] == "turn" {
			return append([]string{"end"}, words[2:]...)
		}
	case "look":
		if words[1] == "at" || words[1] == "around" {
			return append([]string{"look"}, words[2:]...)
		}
	case "play", "use":
		if words[1] == "card" || words[1] == "potion" {
			return append([]string{"play"}, words[2:]...)
		}
	}

	return words
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

// splitOnPreposition splits words on the first preposition.
// Words before the preposition become the object, words after become the target.
// If no preposition is found, all words become the object.
func splitOnPreposition(words []string) (object, target string) {
	for i, w := range words {
		if prepositions[w] {
			object = strings.Join(words[:i], " ")
			target = strings.Join(words[i+1:], " ")
			return object, target
		}
	}
	return strings.Join(words, " "), ""
}
