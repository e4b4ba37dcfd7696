package chat

import "strings"

// Sanitize drops turns whose assistant reply carries no citation tag. Such
// replies are fallbacks or small talk and must not widen the set of
// identifiers later answers may cite. Turns without an assistant reply are
// kept. Pure and idempotent.
func Sanitize(t Transcript) Transcript {
	out := make(Transcript, 0, len(t))
	for _, turn := range t {
		if turn.Bot == "" || len(ExtractCitations(turn.Bot)) > 0 {
			out = append(out, turn)
		}
	}
	return out
}

// historyAsText serializes the transcript oldest-first for the rewrite
// prompt. The newest turn is excluded; it is passed separately as the
// question. Older turns are dropped first when the character budget runs out
// (roughly four characters per token).
func historyAsText(t Transcript, budgetTokens int) string {
	if len(t) == 0 {
		return ""
	}
	turns := t[:len(t)-1]

	var text string
	for i := len(turns) - 1; i >= 0; i-- {
		var b strings.Builder
		b.WriteString("user: ")
		b.WriteString(turns[i].User)
		b.WriteString("\n")
		if turns[i].Bot != "" {
			b.WriteString("assistant: ")
			b.WriteString(turns[i].Bot)
			b.WriteString("\n")
		}
		text = b.String() + text
		if len(text) > budgetTokens*4 {
			break
		}
	}
	return text
}
