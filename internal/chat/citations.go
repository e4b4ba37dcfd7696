package chat

import (
	"regexp"

	"github.com/askfloyd/orchestrator/internal/search"
)

// Citation tags look like [info1.txt]. Nested or empty brackets never form
// a tag.
var citationPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// ExtractCitations returns every citation tag identifier in order of
// appearance, duplicates included.
func ExtractCitations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// LegitimateIDs is the set of identifiers an answer may cite: everything in
// the current retrieval plus everything cited by earlier assistant turns.
func LegitimateIDs(sources []search.Source, transcript Transcript) map[string]struct{} {
	legit := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		legit[s.ID] = struct{}{}
	}
	for _, turn := range transcript {
		for _, id := range ExtractCitations(turn.Bot) {
			legit[id] = struct{}{}
		}
	}
	return legit
}

// IsGrounded reports whether every citation in answer names a legitimate
// identifier. An answer with no citations is grounded.
func IsGrounded(answer string, legit map[string]struct{}) bool {
	for _, id := range ExtractCitations(answer) {
		if _, ok := legit[id]; !ok {
			return false
		}
	}
	return true
}
