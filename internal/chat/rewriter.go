package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/cache"
	"github.com/askfloyd/orchestrator/internal/config"
	"github.com/askfloyd/orchestrator/internal/llm"
	"github.com/askfloyd/orchestrator/internal/metrics"
	"github.com/askfloyd/orchestrator/internal/workerpool"
)

// ErrRewriteFailed marks a rewrite that timed out or errored. There is no
// retry: without a query there is nothing to retrieve, so the request fails
// as a whole.
var ErrRewriteFailed = errors.New("query rewrite failed")

// Rewriter turns a conversation into one standalone search query.
type Rewriter struct {
	llm     CompletionClient
	prompts *PromptLibrary
	pool    *workerpool.Pool
	cache   cache.QueryCache
	cfg     config.ChatConfig
	model   string
	logger  *zap.Logger
}

// NewRewriter creates a rewriter. The cache may be nil.
func NewRewriter(client CompletionClient, prompts *PromptLibrary, pool *workerpool.Pool, qc cache.QueryCache, cfg config.ChatConfig, model string, logger *zap.Logger) *Rewriter {
	return &Rewriter{
		llm:     client,
		prompts: prompts,
		pool:    pool,
		cache:   qc,
		cfg:     cfg,
		model:   model,
		logger:  logger,
	}
}

// Rewrite produces the search query for the transcript's newest question.
func (r *Rewriter) Rewrite(ctx context.Context, t Transcript, temperature float64) (string, error) {
	if len(t) == 0 {
		return "", ErrRewriteFailed
	}
	question := t[len(t)-1].User

	prompt := RenderTemplate(r.prompts.Rewrite(), map[string]string{
		"chat_history": historyAsText(t, r.cfg.HistoryBudget),
		"question":     question,
	})

	var key string
	if r.cache != nil {
		key = cache.MakeKey(r.model, prompt)
		if q, ok := r.cache.Get(ctx, key); ok {
			metrics.RewriteCacheHits.Inc()
			return q, nil
		}
		metrics.RewriteCacheMisses.Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RewriteTimeout)
	defer cancel()

	start := time.Now()
	future := workerpool.Submit(r.pool, ctx, func(ctx context.Context) (string, error) {
		return r.llm.Complete(ctx, llm.CompletionRequest{
			Model:       r.model,
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
			Temperature: temperature,
		})
	})

	raw, err := future.Wait(ctx)
	if err != nil {
		metrics.RecordStageFailure("rewrite", failureReason(err))
		r.logger.Warn("Query rewrite failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return "", ErrRewriteFailed
	}
	metrics.RecordStage("rewrite", time.Since(start).Seconds())

	query := cleanQuery(raw)
	if query == "" {
		query = question
	}
	if r.cache != nil {
		r.cache.Set(ctx, key, query, 30*time.Minute)
	}
	return query, nil
}

// cleanQuery strips quoting and whitespace the model tends to wrap queries in.
func cleanQuery(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case llm.IsTransient(err):
		return "transient"
	default:
		return "fatal"
	}
}
