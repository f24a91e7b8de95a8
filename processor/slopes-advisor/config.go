package slopesadvisor

import (
	"fmt"

	"github.com/c360studio/skitrip/model"
)

// Config holds configuration for the slopes advisor.
type Config struct {
	// AssessmentCapability serves the skill assessment call.
	AssessmentCapability string `yaml:"assessment_capability"`

	// ResortCapability serves the search-grounded resort suggestion call.
	ResortCapability string `yaml:"resort_capability"`

	// ResortCount is the number of resorts requested.
	ResortCount int `yaml:"resort_count"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AssessmentCapability: model.CapabilityForStage("slopes").String(),
		ResortCapability:     model.CapabilityForStage("resorts").String(),
		ResortCount:          10,
		Temperature:          0.5,
		MaxTokens:            8192,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.AssessmentCapability == "" || c.ResortCapability == "" {
		return fmt.Errorf("assessment_capability and resort_capability are required")
	}
	if c.ResortCount < 1 {
		return fmt.Errorf("resort_count must be at least 1")
	}
	return nil
}
