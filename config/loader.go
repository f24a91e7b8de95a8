package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// ProjectConfigFile is the name of the project-level config file.
	ProjectConfigFile = "skitrip.yaml"
	// UserConfigDir is the directory for user-level config.
	UserConfigDir = ".config/skitrip"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger

	// ExplicitFile, when set, replaces project config discovery.
	ExplicitFile string

	// Getenv reads environment overrides. Defaults to os.LookupEnv.
	Getenv func(string) (string, bool)

	// DotEnvFiles are loaded into the process environment before overrides
	// are read. Missing files are ignored.
	DotEnvFiles []string
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:      logger,
		Getenv:      os.LookupEnv,
		DotEnvFiles: []string{".env"},
	}
}

// Load builds the configuration in order:
//  1. defaults
//  2. user config (~/.config/skitrip/config.yaml)
//  3. project config (skitrip.yaml in the current or a parent directory),
//     or ExplicitFile
//  4. .env files
//  5. environment variables
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := l.userConfigPath(); path != "" {
		if err := cfg.overlayFile(path); err == nil {
			l.logger.Debug("Loaded user config", "path", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", "path", path, "error", err)
		}
	}

	if l.ExplicitFile != "" {
		if err := cfg.overlayFile(l.ExplicitFile); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", "path", l.ExplicitFile)
	} else if path := l.findProjectConfig(); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", "path", path)
	} else {
		l.logger.Debug("No project config found")
	}

	for _, f := range l.DotEnvFiles {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				l.logger.Warn("Failed to load env file", "path", f, "error", err)
			}
			continue
		}
		l.logger.Debug("Loaded env file", "path", f)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func (l *Loader) applyEnv(cfg *Config) error {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}

	str := func(key string, dst *string) {
		if v, ok := getenv(key); ok && v != "" {
			*dst = v
		}
	}

	str("SKITRIP_ADDR", &cfg.Server.Addr)
	str("SKITRIP_MODELS", &cfg.LLM.RegistryFile)
	str("SKITRIP_STORAGE", &cfg.Storage.Backend)
	str("NATS_URL", &cfg.Storage.NATSURL)
	str("MONGO_URI", &cfg.Storage.MongoURI)
	str("MONGO_DATABASE", &cfg.Storage.MongoDatabase)
	str("SKITRIP_LOCK", &cfg.Lock.Backend)
	str("REDIS_ADDR", &cfg.Lock.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Lock.RedisPassword)

	if v, ok := getenv("SKITRIP_ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}

	if v, ok := getenv("SKITRIP_TRACING"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SKITRIP_TRACING: %w", err)
		}
		cfg.Tracing.Enabled = enabled
	}
	return nil
}

// EnsureUserConfig creates the user config file with defaults if it does not exist.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine home directory")
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return err
	}

	l.logger.Info("Created default user config", "path", path)
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for skitrip.yaml in the current and parent directories.
func (l *Loader) findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
