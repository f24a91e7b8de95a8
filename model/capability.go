// Package model provides capability-based model selection for trip planning
// stages. Stages ask for a capability (research, advising) and the registry
// resolves it to configured endpoints with fallback chains.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityResearch is for search-backed lookups: routes, lodging,
	// slope listings and resort facts.
	CapabilityResearch Capability = "research"

	// CapabilityAdvising is for skill assessment and coaching text.
	CapabilityAdvising Capability = "advising"

	// CapabilityPlanning is for multi-day itinerary composition without search.
	CapabilityPlanning Capability = "planning"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// StageCapabilities maps pipeline stages to their default capability.
var StageCapabilities = map[string]Capability{
	"transportation": CapabilityResearch,
	"accommodation":  CapabilityResearch,
	"itinerary":      CapabilityResearch,
	"slopes":         CapabilityAdvising,
	"resorts":        CapabilityResearch,
}

// CapabilityForStage returns the default capability for a stage.
// Unknown stages get CapabilityResearch.
func CapabilityForStage(stage string) Capability {
	if c, ok := StageCapabilities[stage]; ok {
		return c
	}
	return CapabilityResearch
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityResearch, CapabilityAdvising, CapabilityPlanning, CapabilityFast:
		return true
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
