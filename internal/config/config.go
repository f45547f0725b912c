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
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Quality   QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds LLM completion settings. Key is required.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig holds keyword search API settings. An empty key disables the
// search, directory and professional-network layers.
type SearchConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Results     int     `yaml:"results" mapstructure:"results"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`

	// Retries re-sends a throttled or 5xx request this many times. Zero,
	// the default, sends each request once.
	Retries int `yaml:"retries" mapstructure:"retries"`
}

// PlacesConfig holds place-directory API settings. An empty key disables the
// places layer and the competitor finder.
type PlacesConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Retries     int     `yaml:"retries" mapstructure:"retries"`
}

// FetchConfig configures the page retrieval client used by the scrapers.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBytes    int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxSubpages int    `yaml:"max_subpages" mapstructure:"max_subpages"`
}

// QualityConfig configures the website quality check.
type QualityConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxSize     int `yaml:"max_size" mapstructure:"max_size"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`

	// Postgres pool bounds. Zero keeps the store's defaults.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ConfigurationError reports a missing or invalid required setting. It is
// fatal: a batch never starts while one is outstanding.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Validate checks required credentials once, up front.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Anthropic.Key) == "" {
		return &ConfigurationError{Key: "anthropic.key", Reason: "required (set LEADS_ANTHROPIC_KEY)"}
	}
	if c.Batch.MaxSize <= 0 || c.Batch.MaxSize > MaxBatchSize {
		return &ConfigurationError{Key: "batch.max_size", Reason: fmt.Sprintf("must be between 1 and %d", MaxBatchSize)}
	}
	return nil
}

// MaxBatchSize is the hard cap on lead ids per invocation.
const MaxBatchSize = 50

// Seconds converts a whole-second setting into a duration, falling back to
// def when unset.
func Seconds(secs int, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default must be bound explicitly for AutomaticEnv to
	// reach them during Unmarshal.
	for _, key := range []string{"anthropic.key", "search.key", "places.key", "store.database_url", "store.max_conns", "store.min_conns", "anthropic.base_url", "search.retries", "places.retries"} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("search.base_url", "https://google.serper.dev")
	v.SetDefault("search.timeout_secs", 10)
	v.SetDefault("search.results", 10)
	v.SetDefault("search.rate_per_sec", 5.0)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.timeout_secs", 10)
	v.SetDefault("places.rate_per_sec", 5.0)
	v.SetDefault("fetch.timeout_secs", 8)
	v.SetDefault("fetch.max_bytes", 200*1024)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("fetch.max_subpages", 3)
	v.SetDefault("quality.timeout_secs", 6)
	v.SetDefault("batch.max_size", MaxBatchSize)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
