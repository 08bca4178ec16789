package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DefiLlama DefiLlamaConfig `mapstructure:"defillama"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DefiLlamaConfig holds upstream API configuration
type DefiLlamaConfig struct {
	ProtocolsURL   string        `mapstructure:"protocols_url"`
	PoolsURL       string        `mapstructure:"pools_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// CacheConfig holds in-memory dataset cache configuration
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// StorageConfig holds last-good dataset snapshot configuration
type StorageConfig struct {
	Enabled         bool        `mapstructure:"enabled"`
	FilePath        string      `mapstructure:"file_path"`
	FilePermissions os.FileMode `mapstructure:"file_permissions"`
	DirPermissions  os.FileMode `mapstructure:"dir_permissions"`
}

// ScoringConfig holds ranking defaults
type ScoringConfig struct {
	DefaultLimit       int  `mapstructure:"default_limit"`
	FallbackToDefaults bool `mapstructure:"fallback_to_defaults"`
}

// TelegramConfig holds Telegram digest configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	DigestInterval time.Duration `mapstructure:"digest_interval"`
	TopN           int           `mapstructure:"top_n"`
	Tokens         []string      `mapstructure:"tokens"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})

	// DefiLlama defaults
	v.SetDefault("defillama.protocols_url", "https://api.llama.fi/protocols")
	v.SetDefault("defillama.pools_url", "https://yields.llama.fi/pools")
	v.SetDefault("defillama.timeout", "30s")
	v.SetDefault("defillama.max_retries", 3)
	v.SetDefault("defillama.retry_delay_base", "1s")

	// Cache defaults
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.file_path", "")
	v.SetDefault("storage.file_permissions", 0o644)
	v.SetDefault("storage.dir_permissions", 0o755)

	// Scoring defaults
	v.SetDefault("scoring.default_limit", 0)
	v.SetDefault("scoring.fallback_to_defaults", true)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.digest_interval", "6h")
	v.SetDefault("telegram.top_n", 10)
	v.SetDefault("telegram.cooldown", "24h")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}

	// Validate DefiLlama config
	if c.DefiLlama.ProtocolsURL == "" {
		return fmt.Errorf("defillama.protocols_url is required")
	}
	if c.DefiLlama.PoolsURL == "" {
		return fmt.Errorf("defillama.pools_url is required")
	}
	if c.DefiLlama.Timeout < 1*time.Second {
		return fmt.Errorf("defillama.timeout must be at least 1 second")
	}
	if c.DefiLlama.MaxRetries < 1 {
		return fmt.Errorf("defillama.max_retries must be at least 1")
	}

	// Validate Cache config
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	// Validate Scoring config
	if c.Scoring.DefaultLimit < 0 {
		return fmt.Errorf("scoring.default_limit must not be negative")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.DigestInterval < 1*time.Minute {
			return fmt.Errorf("telegram.digest_interval must be at least 1 minute")
		}
		if c.Telegram.TopN < 1 {
			return fmt.Errorf("telegram.top_n must be at least 1")
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
