package model

import (
	"testing"
	"time"
)

func TestEndpointHealthTracking(t *testing.T) {
	r := NewDefaultRegistry()

	if !r.IsEndpointAvailable("gpt-4o-mini") {
		t.Error("expected endpoint to be available initially")
	}
	if h := r.GetEndpointHealth("gpt-4o-mini"); h != nil {
		t.Error("expected no health info before any requests")
	}

	r.MarkEndpointSuccess("gpt-4o-mini")

	h := r.GetEndpointHealth("gpt-4o-mini")
	if h == nil {
		t.Fatal("expected health info after success")
	}
	if !h.Available || h.FailureCount != 0 || h.LastSuccess.IsZero() {
		t.Errorf("unexpected health after success: %+v", h)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	r.MarkEndpointFailure("gpt-4o-search")
	if !r.IsEndpointAvailable("gpt-4o-search") {
		t.Error("expected endpoint available after 1 failure")
	}

	r.MarkEndpointFailure("gpt-4o-search")
	if r.IsEndpointAvailable("gpt-4o-search") {
		t.Error("expected circuit open after 2 failures")
	}

	chain := r.GetAvailableFallbackChain(CapabilityResearch)
	if len(chain) != 1 || chain[0] != "claude-sonnet" {
		t.Errorf("available chain = %v, want [claude-sonnet]", chain)
	}

	time.Sleep(60 * time.Millisecond)
	if !r.IsEndpointAvailable("gpt-4o-search") {
		t.Error("expected half-open after recovery timeout")
	}

	r.MarkEndpointSuccess("gpt-4o-search")
	if h := r.GetEndpointHealth("gpt-4o-search"); h.CircuitOpen {
		t.Error("expected circuit closed after success")
	}
}

func TestAvailableFallbackChainAllOpen(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})

	for _, name := range r.GetFallbackChain(CapabilityResearch) {
		r.MarkEndpointFailure(name)
	}

	chain := r.GetAvailableFallbackChain(CapabilityResearch)
	if len(chain) != 2 {
		t.Errorf("expected full chain when every circuit is open, got %v", chain)
	}
}

func TestZeroRegistryHealth(t *testing.T) {
	var r Registry
	r.MarkEndpointFailure("x")
	if h := r.GetEndpointHealth("x"); h == nil || h.FailureCount != 1 {
		t.Errorf("zero registry health = %+v", h)
	}
	r.ResetEndpointHealth("x")
	if h := r.GetEndpointHealth("x"); h != nil {
		t.Error("expected health cleared")
	}
}
