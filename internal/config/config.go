package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/company-profiler/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing   cost.Rates      `yaml:"pricing" mapstructure:"pricing"` // overlays cost.DefaultRates
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Input     InputConfig     `yaml:"input" mapstructure:"input"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings. MainModel selects links and
// writes the combined description, ShortenerModel condenses single pages and
// ClassificationModel answers the categorical questions.
type AnthropicConfig struct {
	Key                 string  `yaml:"key" mapstructure:"key"`
	MainModel           string  `yaml:"main_model" mapstructure:"main_model"`
	ShortenerModel      string  `yaml:"shortener_model" mapstructure:"shortener_model"`
	ClassificationModel string  `yaml:"classification_model" mapstructure:"classification_model"`
	MaxTokens           int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries          int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond   float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// PipelineConfig configures the per-company stages and the batch loop.
type PipelineConfig struct {
	TotalPages        int      `yaml:"total_pages" mapstructure:"total_pages"`
	LinkRetries       int      `yaml:"link_retries" mapstructure:"link_retries"`
	MaxCandidateLinks int      `yaml:"max_candidate_links" mapstructure:"max_candidate_links"`
	MaxPageChars      int      `yaml:"max_page_chars" mapstructure:"max_page_chars"`
	RecycleEvery      int      `yaml:"recycle_every" mapstructure:"recycle_every"`
	CompanyDelayMS    int      `yaml:"company_delay_ms" mapstructure:"company_delay_ms"`
	Schema            string   `yaml:"schema" mapstructure:"schema"`
	BlankPadding      bool     `yaml:"blank_padding" mapstructure:"blank_padding"`
	ExcludePaths      []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	TaxonomyFile      string   `yaml:"taxonomy_file" mapstructure:"taxonomy_file"`
}

// CompanyDelay returns the pause before each company.
func (p PipelineConfig) CompanyDelay() time.Duration {
	return time.Duration(p.CompanyDelayMS) * time.Millisecond
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	Headless              bool   `yaml:"headless" mapstructure:"headless"`
	NavigationTimeoutSecs int    `yaml:"navigation_timeout_secs" mapstructure:"navigation_timeout_secs"`
	UserAgent             string `yaml:"user_agent" mapstructure:"user_agent"`
	SettleMS              int    `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// InputConfig describes the layout of the input workbook. Columns are
// 0-based; -1 disables an optional column.
type InputConfig struct {
	Sheet             string `yaml:"sheet" mapstructure:"sheet"`
	HeaderRows        int    `yaml:"header_rows" mapstructure:"header_rows"`
	NameColumn        int    `yaml:"name_column" mapstructure:"name_column"`
	URLColumn         int    `yaml:"url_column" mapstructure:"url_column"`
	EmailColumn       int    `yaml:"email_column" mapstructure:"email_column"`
	DescriptionColumn int    `yaml:"description_column" mapstructure:"description_column"`
}

// OutputConfig configures the result workbook.
type OutputConfig struct {
	Sheet string `yaml:"sheet" mapstructure:"sheet"`
}

// StoreConfig configures the optional run ledger and page cache.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// CacheTTL returns the page cache freshness window.
func (s StoreConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks values that would otherwise fail deep inside a batch.
func (c *Config) Validate() error {
	if c.Pipeline.TotalPages < 1 {
		return eris.Errorf("config: pipeline.total_pages must be >= 1, got %d", c.Pipeline.TotalPages)
	}
	if c.Pipeline.LinkRetries < 1 {
		return eris.Errorf("config: pipeline.link_retries must be >= 1, got %d", c.Pipeline.LinkRetries)
	}
	if c.Pipeline.RecycleEvery < 0 {
		return eris.Errorf("config: pipeline.recycle_every must be >= 0, got %d", c.Pipeline.RecycleEvery)
	}
	if c.Input.NameColumn < 0 || c.Input.URLColumn < 0 {
		return eris.New("config: input.name_column and input.url_column must be >= 0")
	}
	switch c.Store.Driver {
	case "", "none", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROFILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.main_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.shortener_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.classification_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.max_retries", 5)
	v.SetDefault("anthropic.requests_per_second", 2.0)
	v.SetDefault("pipeline.total_pages", 4)
	v.SetDefault("pipeline.link_retries", 8)
	v.SetDefault("pipeline.max_candidate_links", 200)
	v.SetDefault("pipeline.max_page_chars", 20000)
	v.SetDefault("pipeline.recycle_every", 4)
	v.SetDefault("pipeline.company_delay_ms", 1000)
	v.SetDefault("pipeline.schema", "full")
	v.SetDefault("pipeline.blank_padding", true)
	v.SetDefault("pipeline.exclude_paths", []string{})
	v.SetDefault("pipeline.taxonomy_file", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout_secs", 30)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.settle_ms", 1500)
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.header_rows", 1)
	v.SetDefault("input.name_column", 0)
	v.SetDefault("input.url_column", 1)
	v.SetDefault("input.email_column", -1)
	v.SetDefault("input.description_column", -1)
	v.SetDefault("output.sheet", "Results")
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "profiler.db")
	v.SetDefault("store.cache_ttl_hours", 24)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
	if err := cfg.Validate(); err != nil {
		return nil, err
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
