// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TelegramConfig holds bot credentials and polling behavior.
type TelegramConfig struct {
	Token           string `mapstructure:"token"`
	PollTimeoutSec  int    `mapstructure:"poll_timeout_seconds"`
	CheckTimeoutSec int    `mapstructure:"check_timeout_seconds"`
}

// MonitorConfig governs the poll cycle.
type MonitorConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_seconds"`
	InitialDelaySec int `mapstructure:"initial_delay_seconds"`
	Concurrency     int `mapstructure:"concurrency"`
}

// FetchConfig configures the headless browser session.
type FetchConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	Headless      bool    `mapstructure:"headless"`
	UserAgent     string  `mapstructure:"user_agent"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	SettleMs      int     `mapstructure:"settle_ms"`
	FetchTimeout  int     `mapstructure:"timeout_seconds"`
	CacheTTLSec   int     `mapstructure:"cache_ttl_seconds"`
	RateLimitQPS  float64 `mapstructure:"rate_limit_qps"`
}

// StoreConfig selects and configures the subscription store backend.
type StoreConfig struct {
	// Provider is one of "file", "postgres", "memory".
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is loaded first so local development matches production env vars.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("OUTAGEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.poll_timeout_seconds", 10)
	v.SetDefault("telegram.check_timeout_seconds", 120)
	v.SetDefault("monitor.poll_interval_seconds", 300)
	v.SetDefault("monitor.initial_delay_seconds", 15)
	v.SetDefault("monitor.concurrency", 2)
	v.SetDefault("fetch.base_url", "https://www.dtek-kem.com.ua")
	v.SetDefault("fetch.headless", true)
	v.SetDefault("fetch.nav_timeout_seconds", 45)
	v.SetDefault("fetch.settle_ms", 1200)
	v.SetDefault("fetch.timeout_seconds", 90)
	v.SetDefault("fetch.cache_ttl_seconds", 120)
	v.SetDefault("fetch.rate_limit_qps", 0.5)
	v.SetDefault("store.provider", "file")
	v.SetDefault("store.path", "data/subscriptions.json")
	v.SetDefault("store.table", "subscriptions")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits. The Telegram token
// is checked at bot construction, not here, so one-shot commands work without
// credentials.
func (c Config) Validate() error {
	if c.Monitor.PollIntervalSec <= 0 {
		return fmt.Errorf("monitor.poll_interval_seconds must be > 0")
	}
	if c.Monitor.Concurrency <= 0 {
		return fmt.Errorf("monitor.concurrency must be > 0")
	}
	if c.Fetch.BaseURL == "" {
		return fmt.Errorf("fetch.base_url must be set")
	}
	if c.Fetch.FetchTimeout <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	switch c.Store.Provider {
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set for the file provider")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres provider")
		}
	case "memory":
	default:
		return fmt.Errorf("store.provider must be one of file, postgres, memory")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// PollInterval converts the cycle cadence to a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalSec) * time.Second
}

// InitialDelay converts the startup delay to a duration.
func (c Config) InitialDelay() time.Duration {
	return time.Duration(c.Monitor.InitialDelaySec) * time.Second
}
