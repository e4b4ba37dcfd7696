package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/llm"
	"github.com/askfloyd/orchestrator/internal/metrics"
	"github.com/askfloyd/orchestrator/internal/search"
	"github.com/askfloyd/orchestrator/internal/tracing"
)

// Ask answers a single standalone question without conversation history:
// retrieve first, then read. The question itself is the search query, so
// there is no rewrite stage and no history window.
func (p *Pipeline) Ask(ctx context.Context, question string, overrides Overrides) (Envelope, error) {
	ctx, span := tracing.StartStageSpan(ctx, "retrieve")
	start := time.Now()
	sources, err := p.search.Retrieve(ctx, search.Request{
		Query:           question,
		Top:             overrides.Top,
		ExcludeCategory: overrides.ExcludeCategory,
		SemanticRanker:  overrides.SemanticRanker,
		Captions:        overrides.SemanticCaptions,
	})
	span.End()
	if err != nil {
		metrics.RecordStageFailure("retrieve", "error")
		return Envelope{
			Answer:     fallbackAnswerFailed,
			DataPoints: []string{},
			Thoughts:   "Question:<br>" + question,
		}, err
	}
	metrics.RecordStage("retrieve", time.Since(start).Seconds())

	dataPoints := make([]string, 0, len(sources))
	for _, s := range sources {
		dataPoints = append(dataPoints, s.ID+": "+s.Snippet)
	}
	content := strings.Join(dataPoints, "\n")

	tmpl := p.prompts.Ask()
	if overrides.PromptTemplate != "" && !strings.HasPrefix(overrides.PromptTemplate, injectionMarker) {
		tmpl = overrides.PromptTemplate
	}
	prompt := RenderTemplate(tmpl, map[string]string{
		"q":         question,
		"retrieved": content,
	})

	answer, err := p.synthesize(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, overrides.Temperature)
	thoughts := "Question:<br>" + question + "<br><br>Prompt:<br>" + strings.ReplaceAll(prompt, "\n", "<br>")
	if err != nil {
		if llm.IsTransient(err) {
			err = nil
		}
		return Envelope{
			Answer:     fallbackAnswerFailed,
			DataPoints: dataPoints,
			Thoughts:   thoughts,
		}, err
	}

	metrics.CitationsChecked.Add(float64(len(ExtractCitations(answer))))
	if !IsGrounded(answer, LegitimateIDs(sources, nil)) {
		metrics.AnswersUngrounded.Inc()
		p.logger.Warn("Discarding ungrounded answer", zap.String("question", question))
		answer = fallbackUngrounded
	}

	return Envelope{
		Answer:     answer,
		DataPoints: dataPoints,
		Thoughts:   thoughts,
	}, nil
}
