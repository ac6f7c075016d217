package server

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

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/metrics"
	"github.com/richinex/conductor/orchestration"
	"github.com/richinex/conductor/storage"
)

type fakeProvider struct {
	name string
	text string
	err  error
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Model() string { return p.name + "-model" }

func (p *fakeProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *fakeProvider) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, format *llm.ResponseFormat) (llm.LLMResponse, error) {
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	return llm.LLMResponse{Content: p.text}, nil
}

func newTestServer(t *testing.T, opts Options, providers ...llm.Provider) *Server {
	t.Helper()
	if len(providers) == 0 {
		providers = []llm.Provider{&fakeProvider{name: "openai", text: "Four."}}
	}
	c := orchestration.New(llm.NewRegistry(providers...), orchestration.DefaultConfig())
	return New(c, opts)
}

func do(t *testing.T, s *Server, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestConductSimpleQuery(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/v1/conduct", map[string]any{"prompt": "What is 2+2?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res orchestration.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, orchestration.ModeSimple, res.Mode)
	assert.Equal(t, "Four.", res.FinalText)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "openai", res.Metadata.Provider)
}

func TestConductForcedMode(t *testing.T) {
	s := newTestServer(t, Options{},
		&fakeProvider{name: "openai", text: "from openai"},
		&fakeProvider{name: "anthropic", text: "from claude"})

	rec := do(t, s, http.MethodPost, "/v1/conduct", map[string]any{"prompt": "hi", "mode": "claude_only"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res orchestration.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "from claude", res.FinalText)
	assert.True(t, res.Metadata.Forced)
}

func TestConductAllProvidersDown(t *testing.T) {
	s := newTestServer(t, Options{}, &fakeProvider{name: "openai", err: errors.New("down")})

	rec := do(t, s, http.MethodPost, "/v1/conduct", map[string]any{"prompt": "What is 2+2?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res orchestration.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, orchestration.ModeFailed, res.Mode)
	assert.Contains(t, res.FinalText, "All AI models are currently unavailable")
}

func TestConductRejectsBadInput(t *testing.T) {
	s := newTestServer(t, Options{})

	cases := map[string]string{
		"malformed":     `{"prompt":`,
		"unknown field": `{"prompt":"hi","temperature":1}`,
		"empty prompt":  `{"prompt":"   "}`,
		"no sessions":   `{"prompt":"hi","session_id":"abc"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/conduct", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestConductMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/v1/conduct", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuthToken(t *testing.T) {
	s := newTestServer(t, Options{AuthToken: "secret"})
	body := map[string]any{"prompt": "What is 2+2?"}

	rec := do(t, s, http.MethodPost, "/v1/conduct", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/conduct", body, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, header := range []string{"Bearer secre", "Bearer secret2", "Basic secret", "secret"} {
		rec = do(t, s, http.MethodPost, "/v1/conduct", body, "Authorization", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}

	rec = do(t, s, http.MethodPost, "/v1/conduct", body, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health check is unauthenticated")
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/v1/analyze", map[string]any{"prompt": "What is 2+2?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var a orchestration.ComplexityAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, orchestration.TierSimple, a.Tier)
	assert.Equal(t, orchestration.StrategyDirect, a.Strategy)
}

func TestProviders(t *testing.T) {
	s := newTestServer(t, Options{},
		&fakeProvider{name: "openai", text: "a"},
		&fakeProvider{name: "gemini", text: "b"})

	rec := do(t, s, http.MethodGet, "/v1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Providers []providerView `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Providers, 2)
	assert.Equal(t, "openai", out.Providers[0].Name)
	assert.True(t, out.Providers[0].Default)
	assert.Equal(t, "Gemini", out.Providers[1].DisplayName)
}

func TestSessionPersistence(t *testing.T) {
	store := storage.NewInMemoryStorage()
	s := newTestServer(t, Options{Store: store})
	ctx := context.Background()

	rec := do(t, s, http.MethodPost, "/v1/conduct", map[string]any{"prompt": "What is 2+2?", "session_id": "chat"})
	require.Equal(t, http.StatusOK, rec.Code)
	var first orchestration.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	history, err := store.Load(ctx, "chat")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "What is 2+2?", history[0].Content)
	assert.Equal(t, "Four.", history[1].Content)

	rec = do(t, s, http.MethodPost, "/v1/conduct", map[string]any{"prompt": "And 3+3?", "session_id": "chat"})
	require.Equal(t, http.StatusOK, rec.Code)
	history, err = store.Load(ctx, "chat")
	require.NoError(t, err)
	assert.Len(t, history, 4)

	rec = do(t, s, http.MethodGet, "/v1/sessions/chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.History, 4)
	assert.Len(t, view.Runs, 2)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+first.RequestID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run storage.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "Four.", run.Result.FinalText)

	rec = do(t, s, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chat"`)

	rec = do(t, s, http.MethodDelete, "/v1/sessions/chat", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, "/v1/sessions/chat", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodGet, "/v1/runs/"+first.RequestID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFailedRunIsNotAddedToHistory(t *testing.T) {
	store := storage.NewInMemoryStorage()
	s := newTestServer(t, Options{Store: store}, &fakeProvider{name: "openai", err: errors.New("down")})

	rec := do(t, s, http.MethodPost, "/v1/conduct", map[string]any{"prompt": "What is 2+2?", "session_id": "chat"})
	require.Equal(t, http.StatusOK, rec.Code)

	history, err := store.Load(context.Background(), "chat")
	require.NoError(t, err)
	assert.Empty(t, history)

	runs, err := store.ListRuns(context.Background(), "chat", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, orchestration.ModeFailed, runs[0].Mode)
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	s := newTestServer(t, Options{Metrics: m})

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","providers":1}`, rec.Body.String())

	do(t, s, http.MethodPost, "/v1/analyze", map[string]any{"prompt": "hello"})

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `conductor_http_requests_total{method="POST",path="/v1/analyze",status_code="200"} 1`)
}

func TestMetricsRouteAbsentWithoutCollector(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
