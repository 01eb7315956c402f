package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Screener ScreenerConfig `mapstructure:"screener"`
	Quotes   QuotesConfig   `mapstructure:"quotes"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Provider ProviderConfig `mapstructure:"provider"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds the destination store configuration
type DatabaseConfig struct {
	URI       string `mapstructure:"uri"`
	Namespace string `mapstructure:"namespace"`
	Table     string `mapstructure:"table"`
}

// ScreenerConfig holds the static screener filter and endpoint
type ScreenerConfig struct {
	BaseURL      string   `mapstructure:"base_url"`
	Exchanges    []string `mapstructure:"exchanges"`
	MarketCapMin float64  `mapstructure:"market_cap_min"`
	MarketCapMax float64  `mapstructure:"market_cap_max"`
	Limit        int      `mapstructure:"limit"`
	Lang         string   `mapstructure:"lang"`
}

// QuotesConfig holds the price board endpoint configuration
type QuotesConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

// HTTPConfig holds outbound HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProviderConfig selects the market data provider implementation
type ProviderConfig struct {
	Mode        string `mapstructure:"mode"` // "live" or "fixture"
	FixturePath string `mapstructure:"fixture_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file, a .env file and environment variables.
// An empty path skips the config file; defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	// A missing .env is the normal case in production
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("COMPARISONSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.uri", "DATABASE_URI", "COMPARISONSYNC_DATABASE_URI"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URI: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated env values arrive as a single element
	if len(cfg.Screener.Exchanges) == 1 && strings.Contains(cfg.Screener.Exchanges[0], ",") {
		cfg.Screener.Exchanges = splitCSV(cfg.Screener.Exchanges[0])
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Destination defaults
	v.SetDefault("database.namespace", "comparison")
	v.SetDefault("database.table", "comparison_data")

	// Screener defaults
	v.SetDefault("screener.base_url", "https://apipubaws.tcbs.com.vn")
	v.SetDefault("screener.exchanges", []string{"HOSE", "HNX"})
	v.SetDefault("screener.market_cap_min", 2000.0)
	v.SetDefault("screener.market_cap_max", 99999999999.0)
	v.SetDefault("screener.limit", 1700)
	v.SetDefault("screener.lang", "en")

	// Price board defaults
	v.SetDefault("quotes.base_url", "https://trading.vietcap.com.vn")
	v.SetDefault("quotes.chunk_size", 500)

	v.SetDefault("http.timeout", "30s")

	v.SetDefault("provider.mode", "live")
	v.SetDefault("provider.fixture_path", "")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Database config
	if c.Database.URI == "" {
		return fmt.Errorf("database.uri is required (set DATABASE_URI)")
	}
	if c.Database.Namespace == "" {
		return fmt.Errorf("database.namespace is required")
	}
	if c.Database.Table == "" {
		return fmt.Errorf("database.table is required")
	}

	// Validate Screener config
	if len(c.Screener.Exchanges) == 0 {
		return fmt.Errorf("screener.exchanges must contain at least one exchange")
	}
	if c.Screener.MarketCapMin < 0 {
		return fmt.Errorf("screener.market_cap_min must not be negative")
	}
	if c.Screener.MarketCapMax < c.Screener.MarketCapMin {
		return fmt.Errorf("screener.market_cap_max must be >= screener.market_cap_min")
	}
	if c.Screener.Limit < 1 {
		return fmt.Errorf("screener.limit must be at least 1")
	}
	if c.Screener.Lang == "" {
		return fmt.Errorf("screener.lang is required")
	}

	// Validate Quotes config
	if c.Quotes.ChunkSize < 1 {
		return fmt.Errorf("quotes.chunk_size must be at least 1")
	}
	if c.HTTP.Timeout < time.Second {
		return fmt.Errorf("http.timeout must be at least 1 second")
	}

	// Validate Provider config
	switch c.Provider.Mode {
	case "live":
		if c.Screener.BaseURL == "" {
			return fmt.Errorf("screener.base_url is required in live mode")
		}
		if c.Quotes.BaseURL == "" {
			return fmt.Errorf("quotes.base_url is required in live mode")
		}
	case "fixture":
		if c.Provider.FixturePath == "" {
			return fmt.Errorf("provider.fixture_path is required in fixture mode")
		}
	default:
		return fmt.Errorf("provider.mode must be one of: live, fixture")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
