// Package providers implements LLM provider adapters. Importing it registers
// anthropic, openai and ollama with the llm package.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/model"
)

// AnthropicProvider implements the Anthropic messages API with the
// server-side web search tool.
type AnthropicProvider struct{}

const (
	anthropicVersion = "2023-06-01"

	// anthropicSearchTool is the server tool type for web search.
	anthropicSearchTool = "web_search_20250305"

	anthropicDefaultMaxTokens = 8192
	anthropicDefaultSearches  = 5
)

func init() {
	llm.RegisterProvider(&AnthropicProvider{})
}

// Name returns the provider identifier.
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// BuildURL constructs the Anthropic messages endpoint.
func (a *AnthropicProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return baseURL + "/v1/messages"
}

// SetHeaders adds Anthropic authentication and version headers.
func (a *AnthropicProvider) SetHeaders(req *http.Request, ep *model.EndpointConfig) {
	if key := apiKey(ep, "ANTHROPIC_API_KEY"); key != "" {
		req.Header.Set("x-api-key", key)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Type           string   `json:"type"`
	Name           string   `json:"name"`
	MaxUses        int      `json:"max_uses,omitempty"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
}

// BuildRequestBody creates the messages request. System messages are joined
// into the system prompt.
func (a *AnthropicProvider) BuildRequestBody(ep *model.EndpointConfig, req llm.Request) ([]byte, error) {
	var system []string
	var msgs []anthropicMessage

	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("anthropic requires at least one non-system message")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	body := anthropicRequest{
		Model:       ep.Model,
		MaxTokens:   maxTokens,
		Messages:    msgs,
		System:      strings.Join(system, "\n\n"),
		Temperature: req.Temperature,
	}

	if req.Search != nil && ep.SupportsSearch {
		maxUses := req.Search.MaxUses
		if maxUses <= 0 {
			maxUses = anthropicDefaultSearches
		}
		body.Tools = []anthropicTool{{
			Type:           anthropicSearchTool,
			Name:           "web_search",
			MaxUses:        maxUses,
			AllowedDomains: req.Search.AllowedDomains,
		}}
	}

	return json.Marshal(body)
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type      string `json:"type"`
		Text      string `json:"text"`
		Citations []struct {
			Type  string `json:"type"`
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"citations"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ParseResponse joins the text blocks and collects search citations.
// Tool use and tool result blocks are skipped.
func (a *AnthropicProvider) ParseResponse(body []byte, requested string) (*llm.Response, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}

	var content strings.Builder
	var citations []llm.Citation
	seen := make(map[string]bool)

	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		content.WriteString(block.Text)
		for _, c := range block.Citations {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			citations = append(citations, llm.Citation{URL: c.URL, Title: c.Title})
		}
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = requested
	}

	return &llm.Response{
		Content: content.String(),
		Model:   modelName,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: resp.StopReason,
		Citations:    citations,
	}, nil
}
