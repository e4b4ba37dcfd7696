// Package health runs readiness checks against the pipeline's upstreams.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/circuitbreaker"
)

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Component string        `json:"component"`
	Healthy   bool          `json:"healthy"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Critical  bool          `json:"critical"`
}

// Checker probes one upstream dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	IsCritical() bool
}

// Manager runs registered checkers on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

// NewManager creates an empty health manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{checkers: make(map[string]Checker), logger: logger}
}

// Register adds a checker, replacing any checker with the same name.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[c.Name()] = c
}

// Check runs every checker and returns the per-component results.
func (m *Manager) Check(ctx context.Context) map[string]CheckResult {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	for _, c := range checkers {
		results[c.Name()] = c.Check(ctx)
	}
	return results
}

// Ready returns nil when every critical checker passes. Non-critical
// failures are logged but do not fail readiness.
func (m *Manager) Ready(ctx context.Context) error {
	for name, result := range m.Check(ctx) {
		if result.Healthy {
			continue
		}
		if result.Critical {
			return fmt.Errorf("%s: %s", name, result.Error)
		}
		m.logger.Warn("Non-critical dependency unhealthy",
			zap.String("component", name),
			zap.String("error", result.Error),
		)
	}
	return nil
}

// HTTPServiceChecker probes an HTTP service's health endpoint.
type HTTPServiceChecker struct {
	name     string
	url      string
	critical bool
	client   *http.Client
}

// NewHTTPServiceChecker creates a checker for a service health URL.
func NewHTTPServiceChecker(name, url string, critical bool) *HTTPServiceChecker {
	return &HTTPServiceChecker{
		name:     name,
		url:      url,
		critical: critical,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (h *HTTPServiceChecker) Name() string     { return h.name }
func (h *HTTPServiceChecker) IsCritical() bool { return h.critical }

func (h *HTTPServiceChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: h.name, Critical: h.critical}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	resp, err := h.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		result.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return result
	}
	result.Healthy = true
	return result
}

// RedisChecker probes the rewrite cache's Redis through its breaker wrapper.
type RedisChecker struct {
	wrapper *circuitbreaker.RedisWrapper
}

// NewRedisChecker creates a Redis checker. The rewrite cache degrades to
// local-only without Redis, so the check is never critical.
func NewRedisChecker(wrapper *circuitbreaker.RedisWrapper) *RedisChecker {
	return &RedisChecker{wrapper: wrapper}
}

func (r *RedisChecker) Name() string     { return "redis" }
func (r *RedisChecker) IsCritical() bool { return false }

func (r *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "redis"}

	if r.wrapper.IsCircuitBreakerOpen() {
		result.Error = "circuit breaker open"
		result.Duration = time.Since(start)
		return result
	}
	if err := r.wrapper.Ping(ctx).Err(); err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	result.Healthy = true
	result.Duration = time.Since(start)
	return result
}
