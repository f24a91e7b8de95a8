package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoader_Layers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	userPath := filepath.Join(home, UserConfigDir, UserConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("server:\n  rate_burst: 7\n  addr: \":7000\"\n"), 0o644))

	project := filepath.Join(t.TempDir(), "proj.yaml")
	require.NoError(t, os.WriteFile(project, []byte("server:\n  addr: \":7100\"\n"), 0o644))

	l := NewLoader(nil)
	l.ExplicitFile = project
	l.DotEnvFiles = nil
	l.Getenv = envMap(map[string]string{
		"SKITRIP_STORAGE":         "mongo",
		"MONGO_URI":               "mongodb://localhost:27017",
		"SKITRIP_ALLOWED_ORIGINS": "https://app.example, https://admin.example",
		"SKITRIP_TRACING":         "true",
	})

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Server.RateBurst, "user layer")
	assert.Equal(t, ":7100", cfg.Server.Addr, "project layer wins over user layer")
	assert.Equal(t, "mongo", cfg.Storage.Backend, "env wins over files")
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.MongoURI)
	assert.Equal(t, []string{"https://app.example", "https://admin.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoader_InvalidResult(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	l := NewLoader(nil)
	l.DotEnvFiles = nil
	l.Getenv = envMap(map[string]string{"SKITRIP_LOCK": "redis"})

	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock.redis_addr is required")
}

func TestLoader_BadTracingFlag(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	l := NewLoader(nil)
	l.DotEnvFiles = nil
	l.Getenv = envMap(map[string]string{"SKITRIP_TRACING": "maybe"})

	_, err := l.Load()
	assert.Error(t, err)
}

func TestLoader_DotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SKITRIP_TEST_DOTENV_ADDR=:7300\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SKITRIP_TEST_DOTENV_ADDR") })

	l := NewLoader(nil)
	l.DotEnvFiles = []string{filepath.Join(t.TempDir(), "missing.env"), envFile}

	_, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7300", os.Getenv("SKITRIP_TEST_DOTENV_ADDR"))
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	l := NewLoader(nil)
	require.NoError(t, l.EnsureUserConfig())

	_, err := os.Stat(filepath.Join(home, UserConfigDir, UserConfigFile))
	assert.NoError(t, err)
	require.NoError(t, l.EnsureUserConfig(), "existing file is left alone")
}
