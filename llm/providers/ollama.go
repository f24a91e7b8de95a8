package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/model"
)

// OllamaProvider implements the OpenAI-compatible API used by Ollama, vLLM
// and the mock-llm fixture server. It has no web search, so search specs are
// ignored.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	return chatCompletionsURL(baseURL)
}

func chatCompletionsURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// SetHeaders adds a bearer token when one is configured.
func (o *OllamaProvider) SetHeaders(req *http.Request, ep *model.EndpointConfig) {
	if apiKey := apiKey(ep, ""); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// apiKey reads the endpoint's key variable, falling back to fallbackEnv.
func apiKey(ep *model.EndpointConfig, fallbackEnv string) string {
	if ep != nil && ep.APIKeyEnv != "" {
		return os.Getenv(ep.APIKeyEnv)
	}
	if fallbackEnv == "" {
		return ""
	}
	return os.Getenv(fallbackEnv)
}

// chatRequest is the OpenAI-compatible request format.
type chatRequest struct {
	Model            string         `json:"model"`
	Messages         []chatMessage  `json:"messages"`
	Temperature      *float64       `json:"temperature,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	WebSearchOptions *searchOptions `json:"web_search_options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type searchOptions struct {
	SearchContextSize string `json:"search_context_size,omitempty"`
}

func newChatRequest(modelName string, req llm.Request) chatRequest {
	msgs := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	out := chatRequest{
		Model:       modelName,
		Messages:    msgs,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		out.MaxTokens = &maxTokens
	}
	return out
}

// BuildRequestBody creates the OpenAI-compatible request body.
func (o *OllamaProvider) BuildRequestBody(ep *model.EndpointConfig, req llm.Request) ([]byte, error) {
	return json.Marshal(newChatRequest(ep.Model, req))
}

// chatResponse is the OpenAI-compatible response format. Annotations are
// only present on search-enabled models.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role        string `json:"role"`
			Content     string `json:"content"`
			Annotations []struct {
				Type        string `json:"type"`
				URLCitation struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"url_citation"`
			} `json:"annotations"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts content from an OpenAI-compatible response.
func (o *OllamaProvider) ParseResponse(body []byte, requested string) (*llm.Response, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	var citations []llm.Citation
	for _, a := range choice.Message.Annotations {
		if a.Type == "url_citation" && a.URLCitation.URL != "" {
			citations = append(citations, llm.Citation{URL: a.URLCitation.URL, Title: a.URLCitation.Title})
		}
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = requested
	}

	return &llm.Response{
		Content: choice.Message.Content,
		Model:   modelName,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: choice.FinishReason,
		Citations:    citations,
	}, nil
}
