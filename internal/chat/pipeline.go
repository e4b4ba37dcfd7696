package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/config"
	"github.com/askfloyd/orchestrator/internal/llm"
	"github.com/askfloyd/orchestrator/internal/metrics"
	"github.com/askfloyd/orchestrator/internal/search"
	"github.com/askfloyd/orchestrator/internal/tracing"
	"github.com/askfloyd/orchestrator/internal/workerpool"
)

// User-visible fallback answers. Everything else about a failed request is
// confined to the thoughts trace.
const (
	fallbackQueryFailed  = "It took too long to generate a search query, please try again."
	fallbackAnswerFailed = "It took too long to find an answer, please try again."
	fallbackUngrounded   = "I could not verify the sources for that answer, so I would rather not guess. Please try rephrasing your question."
)

// Pipeline answers one conversation turn. It holds only clients and
// configuration; per-request state is threaded through as values, so one
// Pipeline serves concurrent requests.
type Pipeline struct {
	search  SearchClient
	llm     CompletionClient
	prompts *PromptLibrary
	rewrite *Rewriter
	pool    *workerpool.Pool
	chatCfg config.ChatConfig
	llmCfg  config.LLMConfig
	logger  *zap.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(sc SearchClient, cc CompletionClient, prompts *PromptLibrary, rewriter *Rewriter, pool *workerpool.Pool, chatCfg config.ChatConfig, llmCfg config.LLMConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		search:  sc,
		llm:     cc,
		prompts: prompts,
		rewrite: rewriter,
		pool:    pool,
		chatCfg: chatCfg,
		llmCfg:  llmCfg,
		logger:  logger,
	}
}

// Run executes sanitize, rewrite, retrieve, synthesize and validate in order.
// The envelope is well-formed on every path. A non-nil error means a fatal
// upstream failure; the envelope still carries a best-effort trace.
func (p *Pipeline) Run(ctx context.Context, transcript Transcript, overrides Overrides) (Envelope, error) {
	transcript = Sanitize(transcript)
	if len(transcript) == 0 {
		return Envelope{
			Answer:     fallbackQueryFailed,
			DataPoints: []string{},
			Thoughts:   "Empty transcript after sanitizing",
		}, fmt.Errorf("empty transcript")
	}

	// Stage 1: rewrite the question into a standalone query.
	query, err := p.rewrite.Rewrite(ctx, transcript, overrides.Temperature)
	if err != nil {
		return Envelope{
			Answer:     fallbackQueryFailed,
			DataPoints: []string{},
			Thoughts:   "Did not manage to generate a search query",
		}, nil
	}
	p.logger.Debug("Rewrote question", zap.String("query", query))

	// Stage 2: retrieve grounding documents.
	ctx, span := tracing.StartStageSpan(ctx, "retrieve")
	start := time.Now()
	sources, err := p.search.Retrieve(ctx, search.Request{
		Query:           query,
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
			Thoughts:   traceFor(query, ""),
		}, fmt.Errorf("retrieve: %w", err)
	}
	metrics.RecordStage("retrieve", time.Since(start).Seconds())

	dataPoints := make([]string, 0, len(sources))
	for _, s := range sources {
		dataPoints = append(dataPoints, s.ID+": "+s.Snippet)
	}
	content := strings.Join(dataPoints, "\n")

	// Stage 3: synthesize an answer over the sources.
	systemPrompt := p.prompts.BuildSynthesisPrompt(content, overrides.SuggestFollowupQuestions, overrides.PromptTemplate)
	builder := NewMessageBuilder(systemPrompt)
	builder.AppendHistory(transcript, p.chatCfg.HistoryBudget)

	answer, err := p.synthesize(ctx, builder.Messages(), overrides.Temperature)
	if err != nil {
		if llm.IsTransient(err) {
			return Envelope{
				Answer:     fallbackAnswerFailed,
				DataPoints: dataPoints,
				Thoughts:   traceFor(query, systemPrompt),
			}, nil
		}
		return Envelope{
			Answer:     fallbackAnswerFailed,
			DataPoints: dataPoints,
			Thoughts:   traceFor(query, systemPrompt),
		}, fmt.Errorf("synthesize: %w", err)
	}

	// Stage 4: keep the answer only if every citation is legitimate.
	metrics.CitationsChecked.Add(float64(len(ExtractCitations(answer))))
	if !IsGrounded(answer, LegitimateIDs(sources, transcript)) {
		metrics.AnswersUngrounded.Inc()
		p.logger.Warn("Discarding ungrounded answer",
			zap.String("query", query),
			zap.Strings("citations", ExtractCitations(answer)),
		)
		answer = fallbackUngrounded
	}

	return Envelope{
		Answer:     answer,
		DataPoints: dataPoints,
		Thoughts:   traceFor(query, systemPrompt),
	}, nil
}

// synthesize requests a completion with bounded retries. Only transient
// failures are retried; auth and validation errors surface immediately.
func (p *Pipeline) synthesize(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	attempts := p.llmCfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		metrics.SynthesisAttempts.Inc()

		attemptCtx, cancel := context.WithTimeout(ctx, p.chatCfg.SynthesisTimeout)
		start := time.Now()
		future := workerpool.Submit(p.pool, attemptCtx, func(ctx context.Context) (string, error) {
			return p.llm.Complete(ctx, llm.CompletionRequest{
				Messages:    messages,
				Temperature: temperature,
			})
		})
		answer, err := future.Wait(attemptCtx)
		cancel()

		if err == nil {
			metrics.RecordStage("synthesize", time.Since(start).Seconds())
			return answer, nil
		}
		lastErr = err
		metrics.RecordStageFailure("synthesize", failureReason(err))

		if !llm.IsTransient(err) {
			p.logger.Error("Synthesis failed with non-retryable error", zap.Error(err))
			return "", err
		}
		p.logger.Warn("Synthesis attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if attempt < attempts {
			metrics.SynthesisRetries.Inc()
			select {
			case <-time.After(p.llmCfg.RetryBackoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// traceFor is the human-readable diagnostic carried in the envelope.
func traceFor(query, prompt string) string {
	return "Searched for:<br>" + query + "<br><br>Prompt:<br>" + strings.ReplaceAll(prompt, "\n", "<br>")
}
