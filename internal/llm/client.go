// Package llm is the HTTP client for the completion service.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/askfloyd/orchestrator/internal/circuitbreaker"
	"github.com/askfloyd/orchestrator/internal/config"
	"github.com/askfloyd/orchestrator/internal/metrics"
	"github.com/askfloyd/orchestrator/internal/tracing"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is the payload sent to the completion service.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stop        []string  `json:"stop,omitempty"`
	N           int       `json:"n"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// Client calls the completion service with rate limiting and a circuit breaker.
type Client struct {
	cfg     config.LLMConfig
	http    *circuitbreaker.HTTPWrapper
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a completion client. Rate limiting is disabled when the
// configured rate is non-positive.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	wrapper := circuitbreaker.NewHTTPWrapper(httpClient, "completion", "llm", circuitbreaker.GetCompletionConfig(), logger)

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{cfg: cfg, http: wrapper, limiter: limiter, logger: logger}
}

// Complete sends one chat completion request and returns the first choice.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	if req.N == 0 {
		req.N = 1
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.cfg.BaseURL)
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	buf, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, httpReq)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.RecordCompletion(req.Model, "error", time.Since(start).Seconds())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordCompletion(req.Model, "error", time.Since(start).Seconds())
		apiErr := &APIError{Status: resp.StatusCode}
		var body completionResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr == nil && body.Error != nil {
			apiErr.Type = body.Error.Type
			apiErr.Message = body.Error.Message
		}
		return "", apiErr
	}

	var body completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.RecordCompletion(req.Model, "error", time.Since(start).Seconds())
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(body.Choices) == 0 {
		metrics.RecordCompletion(req.Model, "error", time.Since(start).Seconds())
		return "", &APIError{Status: http.StatusUnprocessableEntity, Type: "empty_response", Message: "completion returned no choices"}
	}

	metrics.RecordCompletion(req.Model, "ok", time.Since(start).Seconds())
	return body.Choices[0].Message.Content, nil
}
