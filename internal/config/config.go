// Package config handles loading and validating the scraper configuration
// from a config file and DIGIKEY_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Pacing  PacingConfig  `mapstructure:"pacing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig defines DigiKey API credentials and environment.
type APIConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Sandbox      bool          `mapstructure:"sandbox"`
	TokenURL     string        `mapstructure:"token_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LocaleSite   string        `mapstructure:"locale_site"`
	LocaleLang   string        `mapstructure:"locale_language"`
	LocaleCur    string        `mapstructure:"locale_currency"`
}

// RetryConfig defines the retry loop parameters.
type RetryConfig struct {
	MaxRetries    int     `mapstructure:"max_retries"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
}

// StorageConfig defines where collections and the token file live.
type StorageConfig struct {
	Dir      string `mapstructure:"dir"`
	PageSize int    `mapstructure:"page_size"`
}

// CacheConfig defines the optional Redis detail cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	DB      int           `mapstructure:"db"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// PacingConfig defines request pacing for bulk detail fetches.
type PacingConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"` // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"`
}

// setDefaults registers every default on its leaf key. Viper only merges
// file sections and env bindings with defaults at the individual key level,
// so section-valued defaults would be lost as soon as any key in the same
// section is set elsewhere.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.locale_site", "US")
	v.SetDefault("api.locale_language", "en")
	v.SetDefault("api.locale_currency", "USD")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.page_size", 50)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("pacing.per_second", 1.0)
	v.SetDefault("pacing.burst", 1)
	v.SetDefault("logging.level", "info")
}

// Load reads the configuration from the given file, or from the default
// search paths when configPath is empty. DIGIKEY_* environment variables
// override file values, so credentials never need to live on disk.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()

		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir, ".config", "digikey-scraper"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DIGIKEY")
	v.AutomaticEnv()
	bindEnvAliases(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.Storage.Dir = expandPath(config.Storage.Dir)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindEnvAliases maps the nested keys onto flat DIGIKEY_* variables
// (DIGIKEY_CLIENT_ID, DIGIKEY_CLIENT_SECRET, DIGIKEY_CLIENT_SANDBOX,
// DIGIKEY_STORAGE_PATH).
func bindEnvAliases(v *viper.Viper) {
	v.BindEnv("api.client_id", "DIGIKEY_CLIENT_ID")
	v.BindEnv("api.client_secret", "DIGIKEY_CLIENT_SECRET")
	v.BindEnv("api.sandbox", "DIGIKEY_CLIENT_SANDBOX")
	v.BindEnv("storage.dir", "DIGIKEY_STORAGE_PATH")
	v.BindEnv("cache.addr", "DIGIKEY_REDIS_ADDR")
	v.BindEnv("logging.level", "DIGIKEY_LOG_LEVEL")
}

func validate(cfg *Config) error {
	if cfg.API.ClientID == "" {
		return fmt.Errorf("api.client_id is required (set DIGIKEY_CLIENT_ID)")
	}
	if cfg.API.ClientSecret == "" {
		return fmt.Errorf("api.client_secret is required (set DIGIKEY_CLIENT_SECRET)")
	}
	if cfg.Retry.MaxRetries < 1 {
		return fmt.Errorf("retry.max_retries must be at least 1 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be at least 1 (got %v)", cfg.Retry.BackoffFactor)
	}
	if cfg.Storage.PageSize < 1 {
		return fmt.Errorf("storage.page_size must be at least 1 (got %d)", cfg.Storage.PageSize)
	}
	return nil
}

// TokenFilePath returns the token cache location inside the storage dir.
func (c *Config) TokenFilePath() string {
	return filepath.Join(c.Storage.Dir, "token_storage.json")
}

// expandPath expands ~ to the home directory and makes the path absolute.
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}
