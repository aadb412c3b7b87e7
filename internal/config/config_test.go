package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "duckduckgo", cfg.Search.Provider)
	assert.Equal(t, 15, cfg.Search.TimeoutSecs)
	assert.Equal(t, 8, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, "json", cfg.Cache.Driver)
	assert.Equal(t, 10, cfg.Careers.MaxResults)
	assert.Equal(t, ResolverConfig{
		MaxResults:             10,
		TopK:                   3,
		ScoreThreshold:         60,
		MinKeywordMatches:      1,
		FallbackFloor:          30,
		FallbackMaxResults:     6,
		BlacklistOverrideScore: 80,
	}, cfg.Education)
	assert.Equal(t, 1500*time.Millisecond, cfg.Batch.Delay())
	assert.Equal(t, 20, cfg.Batch.FlushEvery)
	assert.Equal(t, 1, cfg.Batch.Concurrency)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, 3, cfg.Selector.SettleSecs)

	require.NoError(t, cfg.Validate("careers"))
	require.NoError(t, cfg.Validate("education"))
	require.NoError(t, cfg.Validate("fortune"))
	require.NoError(t, cfg.Validate("selectors"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
  format: console
education:
  top_k: 5
batch:
  concurrency: 4
  delay_ms: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Education.TopK)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Zero(t, cfg.Batch.Delay())
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.Education.ScoreThreshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))
	t.Setenv("PORTAL_LOG_LEVEL", "warn")
	t.Setenv("PORTAL_SEARCH_PROVIDER", "jina")
	t.Setenv("PORTAL_JINA_KEY", "jina_test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "jina", cfg.Search.Provider)
	assert.Equal(t, "jina_test", cfg.Jina.Key)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults needed by every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Search.Provider = "duckduckgo"
	cfg.Careers.MaxResults = 10
	cfg.Education = ResolverConfig{MaxResults: 10, TopK: 3, MinKeywordMatches: 1, FallbackMaxResults: 6}
	cfg.Batch = BatchConfig{DelayMs: 1500, FlushEvery: 20, Concurrency: 1}
	cfg.Fortune.BaseURL = "https://www.fortuneindia.com"
	cfg.Selector.TimeoutSecs = 30
	return cfg
}

func TestValidate_JinaNeedsKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.Provider = "jina"

	err := cfg.Validate("careers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jina.key is required")

	cfg.Jina.Key = "jina_key"
	assert.NoError(t, cfg.Validate("careers"))
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.Provider = "bing"

	err := cfg.Validate("education")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `search.provider "bing" is not supported`)
}

func TestValidate_EducationTunables(t *testing.T) {
	cfg := validDefaults()
	cfg.Education.TopK = 0
	cfg.Fetch.JinaFallback = true

	err := cfg.Validate("education")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "education.top_k must be > 0")
	assert.Contains(t, err.Error(), "fetch.jina_fallback")

	// Careers does not use the education tunables.
	assert.NoError(t, cfg.Validate("careers"))
}

func TestValidate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("careers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 32")

	cfg.Batch.Concurrency = 33
	assert.Error(t, cfg.Validate("careers"))

	cfg.Batch.Concurrency = 32
	assert.NoError(t, cfg.Validate("careers"))
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.Driver = "postgres"

	err := cfg.Validate("careers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.postgres_url is required")

	cfg.Cache.PostgresURL = "postgres://portal@localhost:5432/portal"
	assert.NoError(t, cfg.Validate("careers"))
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
