// Package search is the HTTP client for the document index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/circuitbreaker"
	"github.com/askfloyd/orchestrator/internal/config"
	"github.com/askfloyd/orchestrator/internal/metrics"
	"github.com/askfloyd/orchestrator/internal/tracing"
)

// Client queries the search index over HTTP with a circuit breaker.
type Client struct {
	cfg    config.SearchConfig
	http   *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

// NewClient creates a search client.
func NewClient(cfg config.SearchConfig, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	wrapper := circuitbreaker.NewHTTPWrapper(httpClient, "search", "search", circuitbreaker.GetSearchConfig(), logger)
	return &Client{cfg: cfg, http: wrapper, logger: logger}
}

type searchRequest struct {
	Search               string `json:"search"`
	Top                  int    `json:"top"`
	Filter               string `json:"filter,omitempty"`
	QueryType            string `json:"queryType,omitempty"`
	QueryLanguage        string `json:"queryLanguage,omitempty"`
	QuerySpeller         string `json:"speller,omitempty"`
	SemanticConfig       string `json:"semanticConfiguration,omitempty"`
	QueryCaption   string `json:"captions,omitempty"`
}

type searchResponse struct {
	Value []map[string]json.RawMessage `json:"value"`
}

type caption struct {
	Text string `json:"text"`
}

// Filter builds the index filter expression for an excluded category.
// Single quotes in the value are doubled so the value cannot terminate
// the string literal early.
func Filter(excludeCategory string) string {
	if excludeCategory == "" {
		return ""
	}
	escaped := strings.ReplaceAll(excludeCategory, "'", "''")
	return fmt.Sprintf("category ne '%s'", escaped)
}

// Search runs one query and returns the raw ranked hits.
func (c *Client) Search(ctx context.Context, req Request) ([]Document, error) {
	top := req.Top
	if top <= 0 {
		top = c.cfg.DefaultTop
	}

	mode := "text"
	payload := searchRequest{
		Search: req.Query,
		Top:    top,
		Filter: Filter(req.ExcludeCategory),
	}
	if req.SemanticRanker {
		mode = "semantic"
		payload.QueryType = "semantic"
		payload.QueryLanguage = "en-us"
		payload.QuerySpeller = "lexicon"
		payload.SemanticConfig = c.cfg.SemanticConfig
	}
	if req.Captions {
		payload.QueryCaption = "extractive|highlight-false"
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search", c.cfg.BaseURL, c.cfg.Index)
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, httpReq)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.RecordSearch(mode, "error", time.Since(start).Seconds())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordSearch(mode, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("search http status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.RecordSearch(mode, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	metrics.RecordSearch(mode, "ok", time.Since(start).Seconds())

	docs := make([]Document, 0, len(body.Value))
	for _, raw := range body.Value {
		docs = append(docs, c.parseDocument(raw))
	}
	return docs, nil
}

// Retrieve runs a query and keeps only hits scoring strictly above the
// configured floor, mapped to single-line grounding sources.
func (c *Client) Retrieve(ctx context.Context, req Request) ([]Source, error) {
	docs, err := c.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(docs))
	for _, doc := range docs {
		if doc.Score <= c.cfg.MinScore {
			metrics.DocumentsDiscarded.Inc()
			c.logger.Debug("Discarding low-score document",
				zap.String("id", doc.ID),
				zap.Float64("score", doc.Score),
				zap.Float64("min_score", c.cfg.MinScore),
			)
			continue
		}
		sources = append(sources, Source{
			ID:      doc.ID,
			Snippet: c.snippet(doc, req.Captions),
			Score:   doc.Score,
		})
	}
	return sources, nil
}

func (c *Client) parseDocument(raw map[string]json.RawMessage) Document {
	var doc Document
	if v, ok := raw[c.cfg.SourceField]; ok {
		json.Unmarshal(v, &doc.ID)
	}
	if v, ok := raw[c.cfg.ContentField]; ok {
		json.Unmarshal(v, &doc.Content)
	}
	if v, ok := raw["category"]; ok {
		json.Unmarshal(v, &doc.Category)
	}
	if v, ok := raw["@search.score"]; ok {
		json.Unmarshal(v, &doc.Score)
	}
	if v, ok := raw["@search.captions"]; ok {
		var caps []caption
		if json.Unmarshal(v, &caps) == nil {
			for _, cp := range caps {
				doc.Captions = append(doc.Captions, cp.Text)
			}
		}
	}
	return doc
}

// snippet returns the caption text when captions were requested and present,
// otherwise the document content, with newlines flattened to spaces.
func (c *Client) snippet(doc Document, useCaptions bool) string {
	text := doc.Content
	if useCaptions && len(doc.Captions) > 0 {
		text = strings.Join(doc.Captions, " . ")
	}
	return nonewlines(text)
}

func nonewlines(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
