// Package main implements a mock LLM server for offline skitrip runs.
// It answers OpenAI-compatible /v1/chat/completions and Anthropic-compatible
// /v1/messages requests from JSON fixture files.
//
// Usage:
//
//	mock-llm -fixtures /path/to/fixtures -port 11434
//
// A fixture is chosen by route. The route is the pipeline stage recognised
// from the system prompt (transportation, accommodation, itinerary, slopes,
// resorts) when a fixture for it exists, otherwise the request's model name
// (with any "mock-" prefix stripped as a second try).
//
// Sequential fixtures: numbered files such as "accommodation.1.json" and
// "accommodation.2.json" are returned on the first and second call for that
// route. After they run out the base "accommodation.json" repeats, or the
// last numbered file when there is no base. This drives the accommodation
// retry loop through short replies before a complete one.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}
	if *fixtureDir == "" {
		*fixtureDir = "/fixtures"
	}

	fixtures, err := loadFixtures(*fixtureDir)
	if err != nil {
		logger.Error("Failed to load fixtures", "dir", *fixtureDir, "error", err)
		os.Exit(1)
	}
	logger.Info("Loaded fixtures", "dir", *fixtureDir, "routes", len(fixtures))
	for route, seq := range fixtures {
		logger.Info("Fixture route", "route", route, "fixtures", len(seq))
	}

	s := newServer(fixtures, logger)
	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("Mock LLM server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
