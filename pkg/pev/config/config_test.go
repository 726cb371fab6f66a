package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, time.Now().Year(), cfg.FiscalYear)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 20, cfg.MaxPECount)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, 3, cfg.Scrape.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Scrape.RetryDelay)
	assert.Equal(t, DefaultUserAgent, cfg.Scrape.UserAgent)
	assert.Contains(t, cfg.Scrape.RatioIDs, "marketcap")
	assert.False(t, cfg.Blob.Lenient)
	assert.Equal(t, 5*time.Minute, cfg.Quotes.CacheTTL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "pev.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
fiscal_year: 2025
workers: 8
output:
  format: json
scrape:
  retry_delay: 500ms
snapshot:
  ratio: data/ratio.json
`), 0o644))

	t.Setenv("PEV_WORKERS", "2")
	t.Setenv("DATABASE_URL", "postgres://localhost/pev")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, 2025, cfg.FiscalYear)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Scrape.RetryDelay)
	assert.Equal(t, "data/ratio.json", cfg.Snapshot.Ratio)
	assert.Equal(t, "postgres://localhost/pev", cfg.Store.DSN)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PEV_MAX_PE_COUNT=12\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PEV_MAX_PE_COUNT") })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxPECount)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			FiscalYear: 2026,
			Workers:    1,
			MaxPECount: 20,
			Output:     OutputConfig{Format: "table"},
			Scrape:     ScrapeConfig{MaxRetries: 1},
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no pe count", func(c *Config) { c.MaxPECount = 0 }},
		{"year", func(c *Config) { c.FiscalYear = 26 }},
		{"format", func(c *Config) { c.Output.Format = "xlsx" }},
		{"retries", func(c *Config) { c.Scrape.MaxRetries = 0 }},
		{"rate", func(c *Config) { c.Scrape.RateLimit = -1 }},
		{"cache", func(c *Config) { c.Quotes.CacheSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
