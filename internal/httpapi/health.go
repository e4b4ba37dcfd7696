package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	logger *zap.Logger
	ready  func(ctx context.Context) error
}

// NewHealthHandler creates a health handler. The ready probe may be nil.
func NewHealthHandler(ready func(ctx context.Context) error, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{logger: logger, ready: ready}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Time    time.Time         `json:"time"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: "0.1.0",
		Time:    time.Now(),
		Checks:  map[string]string{"orchestrator": "ok"},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Readiness handles GET /readiness
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ready",
		Version: "0.1.0",
		Time:    time.Now(),
		Checks:  make(map[string]string),
	}

	code := http.StatusOK
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			response.Status = "not ready"
			response.Checks["upstream"] = "failed"
			code = http.StatusServiceUnavailable
			h.logger.Warn("Readiness check failed", zap.Error(err))
		} else {
			response.Checks["upstream"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
