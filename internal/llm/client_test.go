package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/askfloyd/orchestrator/internal/config"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.LLMConfig{
		BaseURL:   baseURL,
		Model:     "gpt-35-turbo",
		Timeout:   2 * time.Second,
		MaxTokens: 256,
	}
	return NewClient(cfg, zaptest.NewLogger(t))
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var got CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Oslo [info1.txt]"}},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	out, err := c.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: RoleUser, Content: "where?"}},
		Temperature: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Oslo [info1.txt]", out)
	assert.Equal(t, "gpt-35-turbo", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.Equal(t, 1, got.N)
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"type": "auth", "message": "bad key"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "bad key", apiErr.Message)
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), CompletionRequest{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "empty_response", apiErr.Type)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"timeout 408", &APIError{Status: http.StatusRequestTimeout}, true},
		{"throttle 429", &APIError{Status: http.StatusTooManyRequests}, true},
		{"server 500", &APIError{Status: http.StatusInternalServerError}, true},
		{"server 503", &APIError{Status: http.StatusServiceUnavailable}, true},
		{"auth 401", &APIError{Status: http.StatusUnauthorized}, false},
		{"forbidden 403", &APIError{Status: http.StatusForbidden}, false},
		{"validation 422", &APIError{Status: http.StatusUnprocessableEntity}, false},
		{"bad request 400", &APIError{Status: http.StatusBadRequest}, false},
		{"conn refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestCompleteRespectsContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, CompletionRequest{})
	require.Error(t, err)
	assert.True(t, IsTransient(err), "deadline errors must be retryable")
}
