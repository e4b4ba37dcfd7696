// Package httpapi exposes the answering pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/chat"
	"github.com/askfloyd/orchestrator/internal/metrics"
)

// Answerer is the pipeline surface the handlers need.
type Answerer interface {
	Run(ctx context.Context, transcript chat.Transcript, overrides chat.Overrides) (chat.Envelope, error)
	Ask(ctx context.Context, question string, overrides chat.Overrides) (chat.Envelope, error)
}

// ChatHandler handles chat and ask requests.
type ChatHandler struct {
	pipeline Answerer
	logger   *zap.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(pipeline Answerer, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

// ChatRequest is a conversation to answer.
type ChatRequest struct {
	History   chat.Transcript `json:"history"`
	Overrides chat.Overrides  `json:"overrides"`
}

// AskRequest is a single standalone question.
type AskRequest struct {
	Question  string         `json:"question"`
	Overrides chat.Overrides `json:"overrides"`
}

// ChatResponse wraps the envelope with a request id for log correlation.
type ChatResponse struct {
	RequestID string `json:"request_id"`
	chat.Envelope
}

// Chat handles POST /v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	start := time.Now()
	metrics.RequestsStarted.WithLabelValues("chat").Inc()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordRequest("chat", "bad_request", time.Since(start).Seconds())
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.History) == 0 {
		metrics.RecordRequest("chat", "bad_request", time.Since(start).Seconds())
		h.sendError(w, "history is required", http.StatusBadRequest)
		return
	}
	if req.History[len(req.History)-1].User == "" {
		metrics.RecordRequest("chat", "bad_request", time.Since(start).Seconds())
		h.sendError(w, "last turn must contain a user question", http.StatusBadRequest)
		return
	}

	env, err := h.pipeline.Run(r.Context(), req.History, req.Overrides)
	status := "ok"
	code := http.StatusOK
	if err != nil {
		// The envelope is still well-formed; the status signals the upstream
		// failure to the caller.
		status = "upstream_error"
		code = http.StatusBadGateway
		h.logger.Error("Chat request failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
	metrics.RecordRequest("chat", status, time.Since(start).Seconds())

	h.sendJSON(w, code, ChatResponse{RequestID: requestID, Envelope: env})
}

// Ask handles POST /v1/ask
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	start := time.Now()
	metrics.RequestsStarted.WithLabelValues("ask").Inc()

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordRequest("ask", "bad_request", time.Since(start).Seconds())
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		metrics.RecordRequest("ask", "bad_request", time.Since(start).Seconds())
		h.sendError(w, "question is required", http.StatusBadRequest)
		return
	}

	env, err := h.pipeline.Ask(r.Context(), req.Question, req.Overrides)
	status := "ok"
	code := http.StatusOK
	if err != nil {
		status = "upstream_error"
		code = http.StatusBadGateway
		h.logger.Error("Ask request failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
	metrics.RecordRequest("ask", status, time.Since(start).Seconds())

	h.sendJSON(w, code, ChatResponse{RequestID: requestID, Envelope: env})
}

func (h *ChatHandler) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *ChatHandler) sendError(w http.ResponseWriter, message string, code int) {
	h.sendJSON(w, code, map[string]string{"error": message})
}
