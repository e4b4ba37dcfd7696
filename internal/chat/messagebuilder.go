package chat

import "github.com/askfloyd/orchestrator/internal/llm"

// MessageBuilder assembles the message list for a completion call under a
// token budget. The system prompt is fixed at index 0; history is inserted
// at index 1 newest-first, so walking the transcript backwards keeps recent
// turns and sheds the oldest when the budget runs out.
type MessageBuilder struct {
	messages []llm.Message
	tokens   int
}

// NewMessageBuilder starts a message list with the given system prompt.
func NewMessageBuilder(systemPrompt string) *MessageBuilder {
	return &MessageBuilder{
		messages: []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}},
		tokens:   estimateTokens(systemPrompt),
	}
}

// Insert places a message at index 1, directly after the system prompt.
func (b *MessageBuilder) Insert(role, content string) {
	msg := llm.Message{Role: role, Content: content}
	b.messages = append(b.messages, llm.Message{})
	copy(b.messages[2:], b.messages[1:])
	b.messages[1] = msg
	b.tokens += estimateTokens(content)
}

// Tokens is the estimated token count of all messages so far.
func (b *MessageBuilder) Tokens() int { return b.tokens }

// Messages returns the assembled list, system prompt first.
func (b *MessageBuilder) Messages() []llm.Message { return b.messages }

// AppendHistory adds transcript turns newest-first until the budget is
// exceeded. The newest turn is always included even when it alone exceeds
// the budget.
func (b *MessageBuilder) AppendHistory(t Transcript, budgetTokens int) {
	for i := len(t) - 1; i >= 0; i-- {
		turn := t[i]
		if turn.Bot != "" {
			b.Insert(llm.RoleAssistant, turn.Bot)
		}
		b.Insert(llm.RoleUser, turn.User)
		if b.tokens > budgetTokens && i < len(t)-1 {
			break
		}
	}
}

// Rough conversion of four characters per token, matching the budget the
// templates were tuned against.
func estimateTokens(s string) int { return len(s) / 4 }
