package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/c360studio/skitrip/llm"
	_ "github.com/c360studio/skitrip/llm/providers" // Register providers
	"github.com/c360studio/skitrip/model"
	"github.com/c360studio/skitrip/storage"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-123",
		"model": "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func fastRetry() llm.RetryConfig {
	return llm.RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       5 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxBackoff:        20 * time.Millisecond,
	}
}

func testRegistry(endpoints map[string]string, chain ...string) *model.Registry {
	eps := make(map[string]*model.EndpointConfig, len(endpoints))
	for name, url := range endpoints {
		eps[name] = &model.EndpointConfig{Provider: "ollama", URL: url, Model: name}
	}
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityResearch: {Preferred: chain[:1], Fallback: chain[1:]},
		},
		eps,
	)
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, chatCompletion(`{"options": []}`))
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(map[string]string{"primary": server.URL}, "primary"))

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "Find flights"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"options": []}`, resp.Content)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Complete_RetryOnTransientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, chatCompletion("ok"))
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(map[string]string{"primary": server.URL}, "primary"),
		llm.WithRetryConfig(fastRetry()))

	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_Complete_NoRetryOnFatalError(t *testing.T) {
	var primary, fallback atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primary.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallback.Add(1)
		writeJSON(w, chatCompletion("ok"))
	}))
	defer good.Close()

	client := llm.NewClient(testRegistry(map[string]string{"primary": bad.URL, "backup": good.URL}, "primary", "backup"),
		llm.WithRetryConfig(fastRetry()))

	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.EqualValues(t, 1, primary.Load())
	assert.EqualValues(t, 0, fallback.Load(), "fatal errors do not fall back")
}

func TestClient_Complete_Fallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, chatCompletion("from backup"))
	}))
	defer good.Close()

	registry := testRegistry(map[string]string{"primary": bad.URL, "backup": good.URL}, "primary", "backup")
	calls := storage.NewMemoryStore()
	store, err := llm.NewCallStore(calls)
	require.NoError(t, err)

	client := llm.NewClient(registry, llm.WithRetryConfig(fastRetry()), llm.WithCallStore(store))

	ctx := llm.WithTraceContext(context.Background(), llm.TraceContext{PlanID: "P1", Stage: "transportation"})
	resp, err := client.Complete(ctx, llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)

	h := registry.GetEndpointHealth("primary")
	require.NotNil(t, h)
	assert.Equal(t, 1, h.FailureCount)

	record, err := store.Get(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "P1", record.PlanID)
	assert.Equal(t, "transportation", record.Stage)
	assert.Equal(t, []string{"primary"}, record.FallbacksUsed)
	assert.Equal(t, 2, record.Retries)
	assert.Equal(t, "from backup", record.Response)
}

func TestClient_Complete_RecordsFailedCall(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer bad.Close()

	calls := storage.NewMemoryStore()
	store, err := llm.NewCallStore(calls)
	require.NoError(t, err)

	client := llm.NewClient(testRegistry(map[string]string{"primary": bad.URL}, "primary"), llm.WithCallStore(store))
	_, err = client.Complete(context.Background(), llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls.Len(storage.CollectionLLMCalls))
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(map[string]string{"primary": server.URL}, "primary"),
		llm.WithRetryConfig(fastRetry()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Complete_ValidationErrors(t *testing.T) {
	client := llm.NewClient(model.NewDefaultRegistry())

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	assert.True(t, llm.IsFatal(err), "missing capability")

	_, err = client.Complete(context.Background(), llm.Request{Capability: "research"})
	assert.True(t, llm.IsFatal(err), "missing messages")
}

func TestClient_Complete_SendsSearchToSearchEndpoints(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, chatCompletion("ok"))
	}))
	defer server.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityResearch: {Preferred: []string{"search"}},
		},
		map[string]*model.EndpointConfig{
			"search": {Provider: "openai", URL: server.URL, Model: "gpt-4o-search-preview", SupportsSearch: true},
		},
	)

	client := llm.NewClient(registry)
	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
		Search:     &llm.WebSearch{ContextSize: llm.SearchContextHigh},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"search_context_size": "high"}, body["web_search_options"])
}

func TestClient_Complete_MetricsAndSpans(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, chatCompletion("ok"))
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics := llm.NewMetrics(reg)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	client := llm.NewClient(testRegistry(map[string]string{"primary": server.URL}, "primary"),
		llm.WithMetrics(metrics), llm.WithTracerProvider(tp))

	ctx := llm.WithTraceContext(context.Background(), llm.TraceContext{PlanID: "P9", Stage: "itinerary"})
	_, err := client.Complete(ctx, llm.Request{
		Capability: "research",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	count, err := promtest.GatherAndCount(reg, "skitrip_llm_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.Complete", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "P9", attrs["trip.plan_id"])
	assert.Equal(t, "itinerary", attrs["trip.stage"])
}
