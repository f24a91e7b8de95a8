package model

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	caps := r.ListCapabilities()
	if len(caps) != 4 {
		t.Errorf("expected 4 capabilities, got %d", len(caps))
	}

	if err := r.Validate(); err != nil {
		t.Errorf("default registry invalid: %v", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		capability Capability
		expected   string
	}{
		{CapabilityResearch, "gpt-4o-search"},
		{CapabilityAdvising, "gpt-4o-mini"},
		{CapabilityPlanning, "claude-sonnet"},
		{CapabilityFast, "gpt-4o-mini"},
		{Capability("unknown"), "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			if got := r.Resolve(tt.capability); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.capability, got, tt.expected)
			}
		})
	}
}

func TestRegistryGetFallbackChain(t *testing.T) {
	r := NewDefaultRegistry()

	got := r.GetFallbackChain(CapabilityAdvising)
	want := []string{"gpt-4o-mini", "claude-haiku", "llama3.2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetFallbackChain(advising) = %v, want %v", got, want)
	}

	if got := r.GetFallbackChain(Capability("unknown")); !reflect.DeepEqual(got, []string{"gpt-4o-mini"}) {
		t.Errorf("unknown capability chain = %v", got)
	}
}

func TestRegistryForStage(t *testing.T) {
	r := NewDefaultRegistry()

	if got := r.ForStage("slopes"); got != "gpt-4o-mini" {
		t.Errorf("ForStage(slopes) = %q", got)
	}
	if got := r.ForStage("accommodation"); got != "gpt-4o-search" {
		t.Errorf("ForStage(accommodation) = %q", got)
	}
}

func TestRegistrySearchEndpoints(t *testing.T) {
	r := NewDefaultRegistry()

	for _, name := range r.GetFallbackChain(CapabilityResearch) {
		ep := r.GetEndpoint(name)
		if ep == nil {
			t.Fatalf("missing endpoint %q", name)
		}
		if !ep.SupportsSearch {
			t.Errorf("research endpoint %q does not support search", name)
		}
	}
}

func TestRegistryValidate(t *testing.T) {
	r := NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityResearch: {Preferred: []string{"missing"}},
		},
		map[string]*EndpointConfig{},
	)

	err := r.Validate()
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("Validate() = %v, want unknown endpoint error", err)
	}

	r.SetEndpoint("missing", &EndpointConfig{Provider: "openai"})
	if err := r.Validate(); err == nil {
		t.Error("expected error for endpoint without model")
	}

	r.SetEndpoint("missing", &EndpointConfig{Provider: "openai", Model: "gpt"})
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestRegistryReplaceKeepsHealth(t *testing.T) {
	r := NewDefaultRegistry()
	r.MarkEndpointFailure("gpt-4o-mini")
	r.MarkEndpointFailure("llama3.2")

	next := NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityFast: {Preferred: []string{"gpt-4o-mini"}},
		},
		map[string]*EndpointConfig{
			"gpt-4o-mini": {Provider: "openai", Model: "gpt-4o-mini"},
		},
	)
	r.Replace(next)

	if got := r.Resolve(CapabilityFast); got != "gpt-4o-mini" {
		t.Errorf("Resolve(fast) after replace = %q", got)
	}
	if r.GetEndpoint("llama3.2") != nil {
		t.Error("expected llama3.2 endpoint to be gone")
	}
	if h := r.GetEndpointHealth("gpt-4o-mini"); h == nil || h.FailureCount != 1 {
		t.Errorf("expected surviving endpoint health to be kept, got %+v", h)
	}
	if h := r.GetEndpointHealth("llama3.2"); h != nil {
		t.Errorf("expected removed endpoint health to be dropped, got %+v", h)
	}
}
