package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixtures_BaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "transportation.json", `{"transportationOptions":[]}`)
	writeFixture(t, dir, "itinerary.json", `{"itinerary":[]}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if len(fixtures) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(fixtures))
	}
	for route, seq := range fixtures {
		if len(seq) != 1 {
			t.Errorf("route %q: expected 1 fixture, got %d", route, len(seq))
		}
	}
}

func TestLoadFixtures_Sequential(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "accommodation.2.json", `{"n":"second"}`)
	writeFixture(t, dir, "accommodation.1.json", `{"n":"first"}`)
	writeFixture(t, dir, "accommodation.json", `{"n":"base"}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	seq := fixtures["accommodation"]
	if len(seq) != 3 {
		t.Fatalf("accommodation: expected 3 fixtures, got %d", len(seq))
	}
	for i, want := range []string{"first", "second", "base"} {
		if !strings.Contains(seq[i], want) {
			t.Errorf("fixture[%d] = %s, want %s", i, seq[i], want)
		}
	}
}

func TestLoadFixtures_NumberedOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "slopes.1.json", `{"n":1}`)
	writeFixture(t, dir, "slopes.2.json", `{"n":2}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if len(fixtures["slopes"]) != 2 {
		t.Fatalf("slopes: expected 2 fixtures, got %d", len(fixtures["slopes"]))
	}
}

func TestLoadFixtures_EmptyDir(t *testing.T) {
	if _, err := loadFixtures(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestLoadFixtures_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "itinerary.json", `{"itinerary":`)

	if _, err := loadFixtures(dir); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestNumberedFileRegex(t *testing.T) {
	tests := []struct {
		name  string
		match bool
		route string
		index string
	}{
		{"accommodation.1.json", true, "accommodation", "1"},
		{"mock-planner.12.json", true, "mock-planner", "12"},
		{"accommodation.json", false, "", ""},
		{"accommodation.a.json", false, "", ""},
	}
	for _, tt := range tests {
		m := numberedFileRe.FindStringSubmatch(tt.name)
		if (m != nil) != tt.match {
			t.Errorf("%s: match = %v, want %v", tt.name, m != nil, tt.match)
			continue
		}
		if m != nil && (m[1] != tt.route || m[2] != tt.index) {
			t.Errorf("%s: got (%s, %s), want (%s, %s)", tt.name, m[1], m[2], tt.route, tt.index)
		}
	}
}

func TestDetectStage(t *testing.T) {
	tests := []struct {
		system string
		want   string
	}{
		{"You are an expert travel logistics planner specializing in groups.", "transportation"},
		{"You are an expert Accommodation Finder.", "accommodation"},
		{"You are an expert ski trip itinerary planner.", "itinerary"},
		{"You are an expert ski and snowboard instructor.", "slopes"},
		{"You are a world-class skiing and snowboarding expert.", "resorts"},
		{"You are a helpful assistant.", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := detectStage(tt.system); got != tt.want {
			t.Errorf("detectStage(%q) = %q, want %q", tt.system, got, tt.want)
		}
	}
}

func TestChatCompletions_RoutesByStage(t *testing.T) {
	s := newTestServer(map[string][]string{
		"transportation": {`{"stage":"transportation"}`},
		"itinerary":      {`{"stage":"itinerary"}`},
	})

	got := doCompletion(t, s, "gpt-4o", "You are an expert ski trip itinerary planner.")
	if !strings.Contains(got, `"itinerary"`) {
		t.Errorf("expected itinerary fixture, got %s", got)
	}
	got = doCompletion(t, s, "gpt-4o", "You are an expert travel logistics planner.")
	if !strings.Contains(got, `"transportation"`) {
		t.Errorf("expected transportation fixture, got %s", got)
	}
}

func TestChatCompletions_FallsBackToModel(t *testing.T) {
	s := newTestServer(map[string][]string{
		"planner": {`{"route":"model"}`},
	})

	// Stage is recognised but has no fixture; the stripped model name does.
	got := doCompletion(t, s, "mock-planner", "You are an expert travel logistics planner.")
	if !strings.Contains(got, `"model"`) {
		t.Errorf("expected model fixture, got %s", got)
	}
}

func TestChatCompletions_UnknownRoute(t *testing.T) {
	s := newTestServer(map[string][]string{"itinerary": {`{}`}})

	body := `{"model":"gpt-4o","messages":[{"role":"system","content":"hello"}]}`
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body)))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChatCompletions_BadBody(t *testing.T) {
	s := newTestServer(map[string][]string{"itinerary": {`{}`}})

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("not json")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSequentialFixtureSelection(t *testing.T) {
	s := newTestServer(map[string][]string{
		"accommodation": {`{"n":"first"}`, `{"n":"second"}`, `{"n":"base"}`},
	})
	system := "You are an expert accommodation finder."

	for i, want := range []string{"first", "second", "base", "base"} {
		got := doCompletion(t, s, "gpt-4o", system)
		if !strings.Contains(got, want) {
			t.Errorf("call %d: got %s, want %s", i+1, got, want)
		}
	}
}

func TestMessages_AnthropicShape(t *testing.T) {
	s := newTestServer(map[string][]string{
		"slopes": {`{"Skill Level":"- 🎿 Intermediate"}`},
	})

	body := `{"model":"claude-sonnet","system":"You are an expert ski and snowboard instructor.","messages":[{"role":"user","content":"answers"}]}`
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp messagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StopReason != "end_turn" || resp.Role != "assistant" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if len(resp.Content) != 1 || resp.Content[0].Type != "text" || !strings.Contains(resp.Content[0].Text, "Intermediate") {
		t.Errorf("unexpected content: %+v", resp.Content)
	}

	// The top-level system prompt is captured as the first message.
	captured := s.requests["slopes"]
	if len(captured) != 1 || captured[0].Messages[0].Role != "system" {
		t.Fatalf("unexpected captured requests: %+v", captured)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(map[string][]string{
		"transportation": {`{}`},
		"itinerary":      {`{}`},
	})
	doCompletion(t, s, "gpt-4o", "travel logistics planner")
	doCompletion(t, s, "gpt-4o", "travel logistics planner")
	doCompletion(t, s, "gpt-4o", "itinerary planner")

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var stats struct {
		TotalCalls   int64          `json:"total_calls"`
		CallsByRoute map[string]int `json:"calls_by_route"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalCalls != 3 {
		t.Errorf("total_calls = %d, want 3", stats.TotalCalls)
	}
	if stats.CallsByRoute["transportation"] != 2 || stats.CallsByRoute["itinerary"] != 1 {
		t.Errorf("calls_by_route = %v", stats.CallsByRoute)
	}
}

func TestRequestsEndpointFilters(t *testing.T) {
	s := newTestServer(map[string][]string{
		"accommodation": {`{}`},
		"itinerary":     {`{}`},
	})
	doCompletion(t, s, "gpt-4o", "accommodation finder")
	doCompletion(t, s, "gpt-4o", "accommodation finder")
	doCompletion(t, s, "gpt-4o", "itinerary planner")

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests?route=accommodation&call=2", nil))

	var out struct {
		RequestsByRoute map[string][]capturedRequest `json:"requests_by_route"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode requests: %v", err)
	}
	if len(out.RequestsByRoute) != 1 {
		t.Fatalf("expected one route, got %v", out.RequestsByRoute)
	}
	reqs := out.RequestsByRoute["accommodation"]
	if len(reqs) != 1 || reqs[0].CallIndex != 2 {
		t.Errorf("unexpected requests: %+v", reqs)
	}
}

func TestHealthAndModels(t *testing.T) {
	s := newTestServer(map[string][]string{"itinerary": {`{}`}})

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if !strings.Contains(rec.Body.String(), `"itinerary"`) {
		t.Errorf("models: %s", rec.Body.String())
	}
}

func newTestServer(fixtures map[string][]string) *server {
	return newServer(fixtures, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func doCompletion(t *testing.T, s *server, model, system string) string {
	t.Helper()
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: "plan it"},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(string(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(resp.Choices))
	}
	return resp.Choices[0].Message.Content
}
