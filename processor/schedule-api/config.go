package scheduleapi

import "fmt"

// Config holds the HTTP surface settings.
type Config struct {
	// AllowedOrigins lists CORS origins. Empty allows every origin.
	AllowedOrigins []string

	// RateLimit is requests per second per client IP; RateBurst the bucket size.
	RateLimit float64
	RateBurst int
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		RateLimit:      1,
		RateBurst:      5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be greater than 0")
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1")
	}
	return nil
}
