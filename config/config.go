// Package config provides configuration loading and validation for skitrip.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/skitrip/llm"
)

// Config represents the complete skitrip configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Stages  StagesConfig  `yaml:"stages"`
	Storage StorageConfig `yaml:"storage"`
	Lock    LockConfig    `yaml:"lock"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required,hostname_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// RateLimit is requests per second per client IP; RateBurst the bucket size.
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`
	RateBurst int     `yaml:"rate_burst" validate:"min=1"`

	ReadTimeout time.Duration `yaml:"read_timeout" validate:"min=1s"`

	// WriteTimeout must cover a full generation run.
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=1s"`
}

// LLMConfig configures model selection and request defaults.
type LLMConfig struct {
	// RegistryFile is a JSON or YAML model registry. Empty uses the built-in registry.
	RegistryFile string `yaml:"registry_file"`

	// Watch reloads RegistryFile when it changes.
	Watch bool `yaml:"watch"`

	// Temperature and MaxTokens override every planner's own setting when set.
	Temperature *float64        `yaml:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	MaxTokens   int             `yaml:"max_tokens" validate:"min=0"`
	Retry       llm.RetryConfig `yaml:"retry"`

	// RecordCalls stores every LLM call in the llm_calls collection.
	RecordCalls bool `yaml:"record_calls"`
}

// StagesConfig bounds each pipeline stage.
type StagesConfig struct {
	TransportationTimeout time.Duration `yaml:"transportation_timeout" validate:"min=1s"`
	AccommodationTimeout  time.Duration `yaml:"accommodation_timeout" validate:"min=1s"`
	ItineraryTimeout      time.Duration `yaml:"itinerary_timeout" validate:"min=1s"`
	SlopesTimeout         time.Duration `yaml:"slopes_timeout" validate:"min=1s"`

	// AccommodationMaxAttempts bounds the accommodation search loop.
	AccommodationMaxAttempts int `yaml:"accommodation_max_attempts" validate:"min=1,max=5"`

	// LockWait is how long a request waits for another run on the same plan.
	LockWait time.Duration `yaml:"lock_wait" validate:"min=0"`
}

// StorageConfig selects the schedule and call record backend.
type StorageConfig struct {
	Backend       string `yaml:"backend" validate:"oneof=memory nats mongo"`
	NATSURL       string `yaml:"nats_url" validate:"required_if=Backend nats"`
	MongoURI      string `yaml:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase string `yaml:"mongo_database" validate:"required_if=Backend mongo"`
}

// LockConfig selects the per-plan lock implementation.
type LockConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=local redis"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" validate:"min=0"`
	TTL           time.Duration `yaml:"ttl" validate:"min=1s"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name" validate:"required"`
	PrettyPrint bool   `yaml:"pretty_print"`
}

// DefaultConfig returns a Config with defaults suitable for a local run.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			RateLimit:       1,
			RateBurst:       5,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Retry: llm.DefaultRetryConfig(),
		},
		Stages: StagesConfig{
			TransportationTimeout:    3 * time.Minute,
			AccommodationTimeout:     5 * time.Minute,
			ItineraryTimeout:         4 * time.Minute,
			SlopesTimeout:            3 * time.Minute,
			AccommodationMaxAttempts: 3,
			LockWait:                 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:       "memory",
			MongoDatabase: "skitrip",
		},
		Lock: LockConfig{
			Backend: "local",
			TTL:     15 * time.Minute,
		},
		Tracing: TracingConfig{
			ServiceName: "skitrip",
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatValidationError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatValidationError(e validator.FieldError) string {
	path := e.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", path)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", path, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", path, e.Param(), e.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got: %v)", path, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", path, e.Param(), e.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port (got: %v)", path, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", path, e.Tag(), e.Value())
	}
}

// LoadFromFile loads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile decodes path onto c. Keys absent from the file keep their
// current values.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// StageTimeout returns the configured timeout for a stage name.
func (s StagesConfig) StageTimeout(stage string) time.Duration {
	switch stage {
	case "transportation":
		return s.TransportationTimeout
	case "accommodation":
		return s.AccommodationTimeout
	case "itinerary":
		return s.ItineraryTimeout
	case "slopes":
		return s.SlopesTimeout
	}
	return 0
}
