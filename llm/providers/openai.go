package providers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/model"
)

// OpenAIProvider implements the OpenAI chat completions API, including the
// search-preview models' web_search_options.
type OpenAIProvider struct {
	OllamaProvider // shared request/response format
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// BuildURL constructs the OpenAI API endpoint.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return chatCompletionsURL(baseURL)
}

// SetHeaders adds OpenAI authentication headers. OpenRouter attribution
// headers are sent when configured.
func (o *OpenAIProvider) SetHeaders(req *http.Request, ep *model.EndpointConfig) {
	if key := apiKey(ep, "OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if siteURL := os.Getenv("OPENROUTER_SITE_URL"); siteURL != "" {
		req.Header.Set("HTTP-Referer", siteURL)
	}
	if siteName := os.Getenv("OPENROUTER_SITE_NAME"); siteName != "" {
		req.Header.Set("X-Title", siteName)
	}
}

// BuildRequestBody adds web_search_options for search-capable endpoints.
// Chat completions have no domain filter, so allowed domains are passed as
// a system instruction. Search models reject temperature, so it is dropped.
func (o *OpenAIProvider) BuildRequestBody(ep *model.EndpointConfig, req llm.Request) ([]byte, error) {
	body := newChatRequest(ep.Model, req)

	if req.Search != nil && ep.SupportsSearch {
		body.Temperature = nil
		body.WebSearchOptions = &searchOptions{SearchContextSize: req.Search.ContextSize}

		if len(req.Search.AllowedDomains) > 0 {
			hint := chatMessage{
				Role:    "system",
				Content: "Only use web sources from these domains: " + strings.Join(req.Search.AllowedDomains, ", ") + ".",
			}
			body.Messages = append([]chatMessage{hint}, body.Messages...)
		}
	}

	return json.Marshal(body)
}
