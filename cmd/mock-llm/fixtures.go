package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// numberedFileRe matches files like "accommodation.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// stageMarkers recognise a pipeline stage from its system prompt. The first
// match wins.
var stageMarkers = []struct {
	stage  string
	marker string
}{
	{"transportation", "travel logistics planner"},
	{"accommodation", "accommodation finder"},
	{"itinerary", "itinerary planner"},
	{"slopes", "snowboard instructor"},
	{"resorts", "skiing and snowboarding expert"},
}

// detectStage returns the stage whose marker appears in system, or "".
func detectStage(system string) string {
	lower := strings.ToLower(system)
	for _, m := range stageMarkers {
		if strings.Contains(lower, m.marker) {
			return m.stage
		}
	}
	return ""
}

// loadFixtures reads JSON files from dir and returns route → content sequence.
//
// For each route, fixtures are ordered:
//  1. Numbered files (route.1.json, route.2.json, ...) in numeric order
//  2. Base file (route.json) appended as the final fallback
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}
		content := string(data)

		if matches := numberedFileRe.FindStringSubmatch(info.Name()); matches != nil {
			route := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[route] == nil {
				numberedFiles[route] = make(map[int]string)
			}
			numberedFiles[route][index] = content
			return nil
		}

		baseFiles[strings.TrimSuffix(info.Name(), ".json")] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	routes := make(map[string]bool)
	for r := range baseFiles {
		routes[r] = true
	}
	for r := range numberedFiles {
		routes[r] = true
	}

	fixtures := make(map[string][]string, len(routes))
	for route := range routes {
		var seq []string
		if numbered, ok := numberedFiles[route]; ok {
			indices := make([]int, 0, len(numbered))
			for idx := range numbered {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				seq = append(seq, numbered[idx])
			}
		}
		if base, ok := baseFiles[route]; ok {
			seq = append(seq, base)
		}
		fixtures[route] = seq
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
