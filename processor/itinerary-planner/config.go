package itineraryplanner

import (
	"fmt"

	"github.com/c360studio/skitrip/model"
)

// Config holds configuration for the itinerary planner.
type Config struct {
	// Capability is the model capability used for the planning call.
	Capability string `yaml:"capability"`

	// Temperature is the sampling temperature. Ignored by search models.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens limits the reply length. Multi-day itineraries are long.
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capability:  model.CapabilityForStage("itinerary").String(),
		Temperature: 0.3,
		MaxTokens:   16384,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Capability == "" {
		return fmt.Errorf("capability is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}
