package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNotion   = "notion"
)

var drivers = []string{DriverMemory, DriverSQLite, DriverPostgres, DriverNotion}

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Notion  NotionConfig  `yaml:"notion" mapstructure:"notion"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Review  ReviewConfig  `yaml:"review" mapstructure:"review"`
	Handoff HandoffConfig `yaml:"handoff" mapstructure:"handoff"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the workspace store backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the postgres connection pool. Zero keeps the driver
// default.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NotionConfig holds Notion API credentials and database IDs.
type NotionConfig struct {
	Token        string  `yaml:"token" mapstructure:"token"`
	Version      string  `yaml:"version" mapstructure:"version"`
	ParentPageID string  `yaml:"parent_page_id" mapstructure:"parent_page_id"`
	LeadsDB      string  `yaml:"leads_db" mapstructure:"leads_db"`
	SourcesDB    string  `yaml:"sources_db" mapstructure:"sources_db"`
	BatchesDB    string  `yaml:"batches_db" mapstructure:"batches_db"`
	ConfigFile   string  `yaml:"config_file" mapstructure:"config_file"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the ingestion webhook server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	Token          string   `yaml:"token" mapstructure:"token"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// IngestConfig configures the ingestion gateway.
type IngestConfig struct {
	DedupKeys       []string `yaml:"dedup_keys" mapstructure:"dedup_keys"`
	MaxStaleRetries int      `yaml:"max_stale_retries" mapstructure:"max_stale_retries"`
}

// ReviewConfig configures the manual-review queue. An empty webhook URL
// logs review items instead of posting them.
type ReviewConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// PricingConfig holds generator pricing used to cost a batch from the usage
// it reports. Models left empty use the built-in rates.
type PricingConfig struct {
	Models    map[string]ModelPricing `yaml:"models" mapstructure:"models"`
	WebSearch float64                 `yaml:"web_search" mapstructure:"web_search"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// HandoffConfig configures the call-centre export.
type HandoffConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	Actor     string `yaml:"actor" mapstructure:"actor"`
}

// RetryConfig bounds retries of transient workspace API errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the review webhook circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
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
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("notion.version", "2022-06-28")
	v.SetDefault("notion.config_file", "notion_config.json")
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("ingest.dedup_keys", []string{"registration", "name_province"})
	v.SetDefault("ingest.max_stale_retries", 3)
	v.SetDefault("handoff.output_dir", ".")
	v.SetDefault("handoff.actor", "handoff")
	v.SetDefault("pricing.web_search", 0.01)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)
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

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "store"
// (any command touching the workspace), "serve", "setup".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.Token == "" {
			errs = append(errs, "server.token is required")
		}
	case "setup":
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
		if c.Notion.ParentPageID == "" {
			errs = append(errs, "notion.parent_page_id is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Ingest.MaxStaleRetries < 0 {
		errs = append(errs, "ingest.max_stale_retries must be >= 0")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	if !slices.Contains(drivers, c.Store.Driver) {
		return []string{fmt.Sprintf("store.driver must be one of %s", strings.Join(drivers, ", "))}
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		pool := c.Store.Pool
		if pool.MaxConns < 0 || pool.MinConns < 0 {
			errs = append(errs, "store.pool connection counts must be >= 0")
		} else if pool.MaxConns > 0 && pool.MinConns > pool.MaxConns {
			errs = append(errs, "store.pool.min_conns must not exceed store.pool.max_conns")
		}
	case DriverNotion:
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
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
