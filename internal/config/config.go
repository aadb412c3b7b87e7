// Package config loads portal-cli settings from config.yaml and PORTAL_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Output     OutputConfig   `yaml:"output" mapstructure:"output"`
	Search     SearchConfig   `yaml:"search" mapstructure:"search"`
	Jina       JinaConfig     `yaml:"jina" mapstructure:"jina"`
	Fetch      FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Cache      CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Careers    ResolverConfig `yaml:"careers" mapstructure:"careers"`
	Education  ResolverConfig `yaml:"education" mapstructure:"education"`
	Vocabulary string         `yaml:"vocabulary" mapstructure:"vocabulary"`
	Batch      BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Retry      RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Breaker    BreakerConfig  `yaml:"breaker" mapstructure:"breaker"`
	Metrics    MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Fortune    FortuneConfig  `yaml:"fortune" mapstructure:"fortune"`
	Selector   SelectorConfig `yaml:"selector" mapstructure:"selector"`
	Log        LogConfig      `yaml:"log" mapstructure:"log"`
}

// OutputConfig locates the per-year output tree.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SearchConfig selects the search provider.
type SearchConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DuckDuckGoURL string `yaml:"duckduckgo_url" mapstructure:"duckduckgo_url"`
}

// JinaConfig holds Jina Search and Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FetchConfig configures page text fetching for the education flavor.
type FetchConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxChars    int `yaml:"max_chars" mapstructure:"max_chars"`
	// JinaFallback reads pages through Jina when the direct fetch fails.
	// Requires jina.key.
	JinaFallback bool `yaml:"jina_fallback" mapstructure:"jina_fallback"`
}

// CacheConfig selects the cache store.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
	PostgresURL   string `yaml:"postgres_url" mapstructure:"postgres_url"`
}

// ResolverConfig holds the tunables of one resolver flavor.
type ResolverConfig struct {
	MaxResults             int `yaml:"max_results" mapstructure:"max_results"`
	TopK                   int `yaml:"top_k" mapstructure:"top_k"`
	ScoreThreshold         int `yaml:"score_threshold" mapstructure:"score_threshold"`
	MinKeywordMatches      int `yaml:"min_keyword_matches" mapstructure:"min_keyword_matches"`
	FallbackFloor          int `yaml:"fallback_floor" mapstructure:"fallback_floor"`
	FallbackMaxResults     int `yaml:"fallback_max_results" mapstructure:"fallback_max_results"`
	BlacklistOverrideScore int `yaml:"blacklist_override_score" mapstructure:"blacklist_override_score"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	DelayMs     int `yaml:"delay_ms" mapstructure:"delay_ms"`
	FlushEvery  int `yaml:"flush_every" mapstructure:"flush_every"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// Delay returns DelayMs as a duration.
func (b BatchConfig) Delay() time.Duration { return time.Duration(b.DelayMs) * time.Millisecond }

// RetryConfig configures retries of transient upstream failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the per-service circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// MetricsConfig configures the optional /metrics endpoint. Empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// FortuneConfig configures the ranking scraper.
type FortuneConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SelectorConfig configures the job title selector guesser.
type SelectorConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SettleSecs  int `yaml:"settle_secs" mapstructure:"settle_secs"`
	DelayMs     int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("output.dir", "output")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("search.provider", "duckduckgo")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("fetch.timeout_secs", 8)
	v.SetDefault("fetch.max_chars", 200000)
	v.SetDefault("fetch.jina_fallback", false)
	v.SetDefault("cache.driver", "json")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "portal")
	v.SetDefault("cache.postgres_url", "")
	v.SetDefault("careers.max_results", 10)
	v.SetDefault("education.max_results", 10)
	v.SetDefault("education.top_k", 3)
	v.SetDefault("education.score_threshold", 60)
	v.SetDefault("education.min_keyword_matches", 1)
	v.SetDefault("education.fallback_floor", 30)
	v.SetDefault("education.fallback_max_results", 6)
	v.SetDefault("education.blacklist_override_score", 80)
	v.SetDefault("batch.delay_ms", 1500)
	v.SetDefault("batch.flush_every", 20)
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 400)
	v.SetDefault("retry.max_backoff_ms", 4000)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown_secs", 30)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("vocabulary", "")
	v.SetDefault("fortune.base_url", "https://www.fortuneindia.com")
	v.SetDefault("selector.timeout_secs", 30)
	v.SetDefault("selector.settle_secs", 3)
	v.SetDefault("selector.delay_ms", 1000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings needed by one command mode: careers,
// education, fortune or selectors.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "careers", "education":
		switch strings.ToLower(c.Search.Provider) {
		case "", "duckduckgo", "ddg":
		case "jina":
			if c.Jina.Key == "" {
				errs = append(errs, "jina.key is required when search.provider is jina")
			}
		default:
			errs = append(errs, fmt.Sprintf("search.provider %q is not supported", c.Search.Provider))
		}
		if strings.EqualFold(c.Cache.Driver, "postgres") && c.Cache.PostgresURL == "" {
			errs = append(errs, "cache.postgres_url is required when cache.driver is postgres")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 32 {
			errs = append(errs, fmt.Sprintf("batch.concurrency must be between 1 and 32 (got %d)", c.Batch.Concurrency))
		}
		if c.Batch.DelayMs < 0 {
			errs = append(errs, "batch.delay_ms must be >= 0")
		}
		if c.Batch.FlushEvery < 1 {
			errs = append(errs, "batch.flush_every must be >= 1")
		}
		if mode == "education" {
			errs = append(errs, c.Education.validate("education")...)
			if c.Fetch.JinaFallback && c.Jina.Key == "" {
				errs = append(errs, "jina.key is required when fetch.jina_fallback is set")
			}
		} else if c.Careers.MaxResults < 1 {
			errs = append(errs, "careers.max_results must be > 0")
		}
	case "fortune":
		if c.Fortune.BaseURL == "" {
			errs = append(errs, "fortune.base_url is required")
		}
	case "selectors":
		if c.Selector.TimeoutSecs < 1 {
			errs = append(errs, "selector.timeout_secs must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (r ResolverConfig) validate(prefix string) []string {
	var errs []string
	if r.MaxResults < 1 {
		errs = append(errs, prefix+".max_results must be > 0")
	}
	if r.TopK < 1 {
		errs = append(errs, prefix+".top_k must be > 0")
	}
	if r.FallbackMaxResults < 0 {
		errs = append(errs, prefix+".fallback_max_results must be >= 0")
	}
	if r.MinKeywordMatches < 0 {
		errs = append(errs, prefix+".min_keyword_matches must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
