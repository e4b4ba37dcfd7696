// Package chat implements the answering pipeline: sanitize the transcript,
// rewrite the question into a search query, retrieve grounding documents,
// synthesize an answer and validate its citations.
package chat

import (
	"context"

	"github.com/askfloyd/orchestrator/internal/llm"
	"github.com/askfloyd/orchestrator/internal/search"
)

// Turn is one exchange in a conversation. Bot is empty on the turn being
// answered.
type Turn struct {
	User string `json:"user"`
	Bot  string `json:"bot,omitempty"`
}

// Transcript is the full conversation, oldest first. The caller resends it on
// every request; nothing is kept server-side between calls.
type Transcript []Turn

// Overrides are per-request knobs the caller may set.
type Overrides struct {
	SemanticCaptions         bool    `json:"semantic_captions,omitempty"`
	SemanticRanker           bool    `json:"semantic_ranker,omitempty"`
	Top                      int     `json:"top,omitempty"`
	ExcludeCategory          string  `json:"exclude_category,omitempty"`
	Temperature              float64 `json:"temperature,omitempty"`
	SuggestFollowupQuestions bool    `json:"suggest_followup_questions,omitempty"`
	PromptTemplate           string  `json:"prompt_template,omitempty"`
}

// Envelope is the pipeline's only output. It is well-formed on every path,
// including failures.
type Envelope struct {
	Answer     string   `json:"answer"`
	DataPoints []string `json:"data_points"`
	Thoughts   string   `json:"thoughts"`
}

// SearchClient is the slice of the search client the pipeline needs.
type SearchClient interface {
	Retrieve(ctx context.Context, req search.Request) ([]search.Source, error)
}

// CompletionClient is the slice of the completion client the pipeline needs.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}
