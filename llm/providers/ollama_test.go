package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/model"
)

func TestOllamaProvider_BuildURL(t *testing.T) {
	p := &OllamaProvider{}
	assert.Equal(t, "http://localhost:11434/v1/chat/completions", p.BuildURL(""))
	assert.Equal(t, "http://gpu-box:11434/v1/chat/completions", p.BuildURL("http://gpu-box:11434/v1/"))
}

func TestOllamaProvider_SetHeaders(t *testing.T) {
	p := &OllamaProvider{}

	t.Run("no key by default", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "should-not-leak")
		req, _ := http.NewRequest(http.MethodPost, "http://localhost:11434/v1/chat/completions", nil)
		p.SetHeaders(req, &model.EndpointConfig{})
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("endpoint key", func(t *testing.T) {
		t.Setenv("VLLM_KEY", "k")
		req, _ := http.NewRequest(http.MethodPost, "http://localhost:8000/v1/chat/completions", nil)
		p.SetHeaders(req, &model.EndpointConfig{APIKeyEnv: "VLLM_KEY"})
		assert.Equal(t, "Bearer k", req.Header.Get("Authorization"))
	})
}

func TestOllamaProvider_IgnoresSearch(t *testing.T) {
	p := &OllamaProvider{}
	body, err := p.BuildRequestBody(&model.EndpointConfig{Model: "llama3.2", SupportsSearch: true}, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
		Search:   &llm.WebSearch{AllowedDomains: []string{"www.airbnb.com"}},
	})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.NotContains(t, parsed, "web_search_options")
	assert.NotContains(t, parsed, "max_tokens")
	assert.Len(t, parsed["messages"], 1)
}

func TestOllamaProvider_ParseResponse(t *testing.T) {
	p := &OllamaProvider{}

	t.Run("success", func(t *testing.T) {
		resp, err := p.ParseResponse([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`), "llama3.2")
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, "llama3.2", resp.Model, "falls back to requested model")
		assert.Equal(t, 4, resp.Usage.TotalTokens)
		assert.Empty(t, resp.Citations)
	})

	t.Run("no choices", func(t *testing.T) {
		_, err := p.ParseResponse([]byte(`{"choices": []}`), "llama3.2")
		assert.Error(t, err)
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := p.ParseResponse([]byte(`<html>bad gateway</html>`), "llama3.2")
		assert.Error(t, err)
	})
}
