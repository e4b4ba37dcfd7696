package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/askfloyd/orchestrator/internal/auth"
	"github.com/askfloyd/orchestrator/internal/chat"
)

type stubPipeline struct {
	env chat.Envelope
	err error

	gotTranscript chat.Transcript
	gotQuestion   string
	gotOverrides  chat.Overrides
}

func (s *stubPipeline) Run(ctx context.Context, t chat.Transcript, o chat.Overrides) (chat.Envelope, error) {
	s.gotTranscript = t
	s.gotOverrides = o
	return s.env, s.err
}

func (s *stubPipeline) Ask(ctx context.Context, q string, o chat.Overrides) (chat.Envelope, error) {
	s.gotQuestion = q
	s.gotOverrides = o
	return s.env, s.err
}

func newTestServer(t *testing.T, p Answerer) *http.ServeMux {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mux := http.NewServeMux()
	mw := auth.NewMiddleware(nil, true)
	RegisterRoutes(mux, NewChatHandler(p, logger), NewHealthHandler(nil, logger), mw)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	stub := &stubPipeline{env: chat.Envelope{
		Answer:     "Yes [info1.txt]",
		DataPoints: []string{"info1.txt: facts"},
		Thoughts:   "Searched for:<br>q",
	}}
	mux := newTestServer(t, stub)

	rec := postJSON(t, mux, "/v1/chat", ChatRequest{
		History:   chat.Transcript{{User: "Does DNB offer house insurance?"}},
		Overrides: chat.Overrides{Top: 3, SemanticRanker: true},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "Yes [info1.txt]", resp.Answer)
	assert.Equal(t, []string{"info1.txt: facts"}, resp.DataPoints)

	assert.Equal(t, 3, stub.gotOverrides.Top)
	assert.True(t, stub.gotOverrides.SemanticRanker)
	require.Len(t, stub.gotTranscript, 1)
}

func TestChatEndpointValidation(t *testing.T) {
	mux := newTestServer(t, &stubPipeline{})

	rec := postJSON(t, mux, "/v1/chat", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, mux, "/v1/chat", ChatRequest{History: chat.Transcript{{User: ""}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEndpointUpstreamError(t *testing.T) {
	stub := &stubPipeline{
		env: chat.Envelope{Answer: "It took too long to find an answer, please try again.", DataPoints: []string{}},
		err: errors.New("synthesize: 401"),
	}
	mux := newTestServer(t, stub)

	rec := postJSON(t, mux, "/v1/chat", ChatRequest{History: chat.Transcript{{User: "q"}}})

	// The caller still gets a well-formed envelope.
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Answer)
	assert.NotNil(t, resp.DataPoints)
}

func TestAskEndpoint(t *testing.T) {
	stub := &stubPipeline{env: chat.Envelope{Answer: "ok", DataPoints: []string{}}}
	mux := newTestServer(t, stub)

	rec := postJSON(t, mux, "/v1/ask", AskRequest{Question: "What is covered?"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What is covered?", stub.gotQuestion)
}

func TestAskEndpointRequiresQuestion(t *testing.T) {
	mux := newTestServer(t, &stubPipeline{})
	rec := postJSON(t, mux, "/v1/ask", AskRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestServer(t, &stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestReadinessEndpointFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mux := http.NewServeMux()
	mw := auth.NewMiddleware(nil, true)
	h := NewHealthHandler(func(ctx context.Context) error { return errors.New("redis down") }, logger)
	RegisterRoutes(mux, NewChatHandler(&stubPipeline{}, logger), h, mw)

	req := httptest.NewRequest(http.MethodGet, "/readiness", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
