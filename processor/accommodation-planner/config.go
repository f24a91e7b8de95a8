package accommodationplanner

import (
	"fmt"

	"github.com/c360studio/skitrip/model"
)

// DefaultMaxAttempts is the number of planning calls before the planner
// settles for fewer than three options.
const DefaultMaxAttempts = 3

// Config holds configuration for the accommodation planner.
type Config struct {
	// Capability is the model capability used for the planning calls.
	Capability string `yaml:"capability"`

	// Temperature is the sampling temperature. Ignored by search models.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens limits the reply length. 0 uses the endpoint default.
	MaxTokens int `yaml:"max_tokens"`

	// MaxAttempts bounds the retry loop.
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Capability:  model.CapabilityForStage("accommodation").String(),
		Temperature: 0.3,
		MaxTokens:   8192,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Capability == "" {
		return fmt.Errorf("capability is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}
