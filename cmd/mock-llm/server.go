package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Anthropic-compatible types ---

type messagesRequest struct {
	Model    string        `json:"model"`
	System   string        `json:"system"`
	Messages []chatMessage `json:"messages"`
}

type messagesContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messagesResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Model      string            `json:"model"`
	Content    []messagesContent `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      messagesUsage     `json:"usage"`
}

// --- Server ---

// capturedRequest stores an incoming request for test verification.
type capturedRequest struct {
	Route     string        `json:"route"`
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"` // 1-indexed per-route call number
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string // route → ordered fixture contents
	logger   *slog.Logger

	mu         sync.Mutex
	calls      int64
	routeCalls map[string]int
	requests   map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		fixtures:   fixtures,
		logger:     logger,
		routeCalls: make(map[string]int),
		requests:   make(map[string][]capturedRequest),
	}
}

func (s *server) routes() http.Handler {
	router := httprouter.New()
	router.GET("/health", s.handleHealth)
	router.POST("/v1/chat/completions", s.handleChatCompletions)
	router.POST("/v1/messages", s.handleMessages)
	router.GET("/v1/models", s.handleModels)
	router.GET("/stats", s.handleStats)
	router.GET("/requests", s.handleRequests)
	return router
}

// resolveRoute picks the fixture route for a request.
func (s *server) resolveRoute(model string, system string) (string, bool) {
	if stage := detectStage(system); stage != "" {
		if _, ok := s.fixtures[stage]; ok {
			return stage, true
		}
	}
	if _, ok := s.fixtures[model]; ok {
		return model, true
	}
	if stripped := strings.TrimPrefix(model, "mock-"); stripped != model {
		if _, ok := s.fixtures[stripped]; ok {
			return stripped, true
		}
	}
	return "", false
}

// next returns the content for the route's next call and records the request.
func (s *server) next(route, model string, messages []chatMessage) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.routeCalls[route]++
	callIndex := s.routeCalls[route]

	s.requests[route] = append(s.requests[route], capturedRequest{
		Route:     route,
		Model:     model,
		Messages:  messages,
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	})

	seq := s.fixtures[route]
	if callIndex <= len(seq) {
		return seq[callIndex-1], callIndex
	}
	return seq[len(seq)-1], callIndex
}

func systemText(messages []chatMessage) string {
	for _, m := range messages {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	route, ok := s.resolveRoute(req.Model, systemText(req.Messages))
	if !ok {
		s.logger.Warn("No fixture for request", "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}
	content, callIndex := s.next(route, req.Model, req.Messages)
	s.logger.Info("Served completion", "api", "openai", "route", route, "model", req.Model, "call_index", callIndex, "bytes", len(content))

	writeJSON(w, chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4, // rough estimate
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	})
}

func (s *server) handleMessages(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req messagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	route, ok := s.resolveRoute(req.Model, req.System)
	if !ok {
		s.logger.Warn("No fixture for request", "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}
	messages := append([]chatMessage{{Role: "system", Content: req.System}}, req.Messages...)
	content, callIndex := s.next(route, req.Model, messages)
	s.logger.Info("Served completion", "api", "anthropic", "route", route, "model", req.Model, "call_index", callIndex, "bytes", len(content))

	writeJSON(w, messagesResponse{
		ID:         fmt.Sprintf("msg_mock_%d", time.Now().UnixNano()),
		Type:       "message",
		Role:       "assistant",
		Model:      req.Model,
		Content:    []messagesContent{{Type: "text", Text: content}},
		StopReason: "end_turn",
		Usage:      messagesUsage{InputTokens: len(content) / 4, OutputTokens: len(content) / 4},
	})
}

// handleModels lists fixture routes as models.
func (s *server) handleModels(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	models := make([]modelEntry, 0, len(s.fixtures))
	for name := range s.fixtures {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	writeJSON(w, map[string]any{"object": "list", "data": models})
}

// handleStats returns total_calls and per-route calls_by_route.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.mu.Lock()
	byRoute := make(map[string]int, len(s.routeCalls))
	for route, n := range s.routeCalls {
		byRoute[route] = n
	}
	total := s.calls
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"total_calls":    total,
		"calls_by_route": byRoute,
	})
}

// handleRequests returns captured requests. Query params:
//   - route: filter by route (optional)
//   - call: filter by 1-indexed call number (optional)
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	routeFilter := r.URL.Query().Get("route")
	callFilter, err := strconv.Atoi(r.URL.Query().Get("call"))
	if err != nil {
		callFilter = 0
	}

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for route, reqs := range s.requests {
		if routeFilter != "" && route != routeFilter {
			continue
		}
		for _, req := range reqs {
			if callFilter == 0 || req.CallIndex == callFilter {
				result[route] = append(result[route], req)
			}
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"requests_by_route": result})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
