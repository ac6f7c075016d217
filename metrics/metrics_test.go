package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/richinex/conductor/llm"
)

func TestCollectorRegistersMetrics(t *testing.T) {
	m := New()
	m.ObserveLLMCall("openai", "gpt-4o", time.Second, nil, nil)
	m.ObserveConduct("simple", "simple", time.Second, 0, 0)
	m.ObserveFallback("synthesis")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"conductor_llm_requests_total",
		"conductor_llm_request_duration_seconds",
		"conductor_conduct_requests_total",
		"conductor_conduct_duration_seconds",
		"conductor_conduct_fallbacks_total",
		"go_goroutines",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestObserveLLMCall(t *testing.T) {
	m := New()
	usage := &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}

	m.ObserveLLMCall("claude", "sonnet", 2*time.Second, usage, nil)
	m.ObserveLLMCall("claude", "sonnet", time.Second, usage, nil)
	m.ObserveLLMCall("claude", "sonnet", time.Second, nil, errors.New("boom"))

	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("claude", "sonnet", "success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("claude", "sonnet", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("claude", "sonnet", "prompt")); got != 20 {
		t.Errorf("prompt tokens = %v, want 20", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("claude", "sonnet", "completion")); got != 10 {
		t.Errorf("completion tokens = %v, want 10", got)
	}
}

func TestObserveConduct(t *testing.T) {
	m := New()
	m.ObserveConduct("orchestrated", "complex", 3*time.Second, 2, 1)
	m.ObserveConduct("consensus", "", time.Second, 0, 0)

	if got := testutil.ToFloat64(m.ConductTotal.WithLabelValues("orchestrated", "complex")); got != 1 {
		t.Errorf("orchestrated count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConductTotal.WithLabelValues("consensus", "none")); got != 1 {
		t.Errorf("forced count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SubTasksTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("succeeded sub-tasks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SubTasksTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed sub-tasks = %v, want 1", got)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := New()
	h := m.Middleware("/v1/conduct", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/conduct", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/conduct", "400")); got != 1 {
		t.Errorf("request count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveRequests); got != 0 {
		t.Errorf("active requests = %v, want 0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveFallback("decomposition")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `conductor_conduct_fallbacks_total{stage="decomposition"} 1`) {
		t.Errorf("fallback counter missing from exposition:\n%s", rec.Body.String())
	}
}
