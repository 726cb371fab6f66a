// Package config loads pev settings from defaults, an optional YAML file,
// a .env file and PEV_-prefixed environment variables, in increasing order
// of precedence. Command flags bound by the CLI win over all of them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PEV_WORKERS.
const EnvPrefix = "PEV"

// Config holds application configuration
type Config struct {
	Log        LogConfig      `mapstructure:"log"`
	FiscalYear int            `mapstructure:"fiscal_year"`
	Workers    int            `mapstructure:"workers"`
	MaxPECount int            `mapstructure:"max_pe_count"`
	Output     OutputConfig   `mapstructure:"output"`
	Scrape     ScrapeConfig   `mapstructure:"scrape"`
	Blob       BlobConfig     `mapstructure:"blob"`
	Snapshot   SnapshotConfig `mapstructure:"snapshot"`
	Quotes     QuotesConfig   `mapstructure:"quotes"`
	Store      StoreConfig    `mapstructure:"store"`
	Schedule   ScheduleConfig `mapstructure:"schedule"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type OutputConfig struct {
	Format      string   `mapstructure:"format"`
	Columns     []string `mapstructure:"columns"`
	Sets        []string `mapstructure:"sets"`
	Color       bool     `mapstructure:"color"`
	PrettyJSON  bool     `mapstructure:"pretty_json"`
	MaxColWidth int      `mapstructure:"max_col_width"`
}

type ScrapeConfig struct {
	StockAnalysisURL string        `mapstructure:"stockanalysis_url"`
	MacrotrendsURL   string        `mapstructure:"macrotrends_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	Burst            int           `mapstructure:"burst"`
	RatioIDs         []string      `mapstructure:"ratio_ids"`
}

type BlobConfig struct {
	Lenient bool `mapstructure:"lenient"`
}

// SnapshotConfig points at the three JSON files a previous scrape wrote.
type SnapshotConfig struct {
	Ratio    string `mapstructure:"ratio"`
	Forecast string `mapstructure:"forecast"`
	PE       string `mapstructure:"pe"`
}

type QuotesConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// DefaultUserAgent is sent on every scrape request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// SetDefaults registers every key with its default value. Keys without a
// default are invisible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("fiscal_year", 0)
	v.SetDefault("workers", 4)
	v.SetDefault("max_pe_count", 20)

	v.SetDefault("output.format", "table")
	v.SetDefault("output.columns", []string{})
	v.SetDefault("output.sets", []string{})
	v.SetDefault("output.color", true)
	v.SetDefault("output.pretty_json", true)
	v.SetDefault("output.max_col_width", 0)

	v.SetDefault("scrape.stockanalysis_url", "https://stockanalysis.com")
	v.SetDefault("scrape.macrotrends_url", "https://www.macrotrends.net")
	v.SetDefault("scrape.user_agent", DefaultUserAgent)
	v.SetDefault("scrape.timeout", 10*time.Second)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.retry_delay", 2*time.Second)
	v.SetDefault("scrape.rate_limit", 0.5)
	v.SetDefault("scrape.burst", 1)
	v.SetDefault("scrape.ratio_ids", []string{"marketcap", "beta", "pe", "forwardPE", "peg", "eps"})

	v.SetDefault("blob.lenient", false)

	v.SetDefault("snapshot.ratio", "")
	v.SetDefault("snapshot.forecast", "")
	v.SetDefault("snapshot.pe", "")

	v.SetDefault("quotes.enabled", true)
	v.SetDefault("quotes.timeout", 5*time.Second)
	v.SetDefault("quotes.cache_ttl", 5*time.Minute)
	v.SetDefault("quotes.cache_size", 512)

	v.SetDefault("store.dsn", "")
	v.SetDefault("schedule.cron", "0 18 * * 1-5")
}

// Load reads configuration into a Config. file may be empty, in which case
// pev.yaml is looked up in the working directory and ~/.config/pev.
func Load(v *viper.Viper, file string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("store.dsn", EnvPrefix+"_STORE_DSN", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("bind store.dsn: %w", err)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("pev")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pev")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.FiscalYear == 0 {
		cfg.FiscalYear = time.Now().Year()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxPECount < 1 {
		return fmt.Errorf("max_pe_count must be at least 1, got %d", c.MaxPECount)
	}
	if c.FiscalYear < 1900 || c.FiscalYear > 2200 {
		return fmt.Errorf("fiscal_year out of range: %d", c.FiscalYear)
	}
	switch c.Output.Format {
	case "table", "json", "syms":
	default:
		return fmt.Errorf("unsupported output format: %q", c.Output.Format)
	}
	if c.Scrape.MaxRetries < 1 {
		return fmt.Errorf("scrape.max_retries must be at least 1, got %d", c.Scrape.MaxRetries)
	}
	if c.Scrape.RateLimit < 0 {
		return fmt.Errorf("scrape.rate_limit must not be negative")
	}
	if c.Quotes.CacheSize < 0 {
		return fmt.Errorf("quotes.cache_size must not be negative")
	}
	return nil
}
