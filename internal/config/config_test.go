package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
server:
  address: ":8080"
  cors_origins:
    - "https://app.example.com"

defillama:
  protocols_url: "https://api.llama.fi/protocols"
  pools_url: "https://yields.llama.fi/pools"
  timeout: 20s
  max_retries: 5

cache:
  ttl: 2m

storage:
  file_path: "./data/datasets.json"
  file_permissions: 0600

scoring:
  default_limit: 50

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true
  digest_interval: 1h
  top_n: 5
  tokens:
    - usdc

logging:
  level: "debug"
  format: "text"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Server.Address != ":8080" {
		t.Errorf("Unexpected address: %s", cfg.Server.Address)
	}
	if cfg.DefiLlama.Timeout != 20*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.DefiLlama.Timeout)
	}
	if cfg.DefiLlama.MaxRetries != 5 {
		t.Errorf("Unexpected max retries: %d", cfg.DefiLlama.MaxRetries)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("Unexpected cache ttl: %v", cfg.Cache.TTL)
	}
	if cfg.Scoring.DefaultLimit != 50 {
		t.Errorf("Unexpected default limit: %d", cfg.Scoring.DefaultLimit)
	}
	if !cfg.Scoring.FallbackToDefaults {
		t.Error("Expected fallback_to_defaults default to be true")
	}
	if len(cfg.Telegram.Tokens) != 1 || cfg.Telegram.Tokens[0] != "usdc" {
		t.Errorf("Unexpected telegram tokens: %v", cfg.Telegram.Tokens)
	}
	if cfg.Telegram.Cooldown != 24*time.Hour {
		t.Errorf("Unexpected telegram cooldown default: %v", cfg.Telegram.Cooldown)
	}
	if cfg.Storage.DirPermissions != 0o755 {
		t.Errorf("Unexpected dir permissions: %o", cfg.Storage.DirPermissions)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefiLlama.PoolsURL != "https://yields.llama.fi/pools" {
		t.Errorf("Unexpected pools url: %s", cfg.DefiLlama.PoolsURL)
	}
	if cfg.Server.Address != ":5000" {
		t.Errorf("Unexpected address: %s", cfg.Server.Address)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed on defaults: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/curator.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Address: ":5000"},
		DefiLlama: DefiLlamaConfig{
			ProtocolsURL: "https://example.com/protocols",
			PoolsURL:     "https://example.com/pools",
			Timeout:      30 * time.Second,
			MaxRetries:   3,
		},
		Telegram: TelegramConfig{DigestInterval: time.Hour, TopN: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing telegram token when enabled",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" },
			wantErr: true,
		},
		{
			name: "digest interval too short",
			mutate: func(c *Config) {
				c.Telegram = TelegramConfig{Enabled: true, BotToken: "t", ChatID: "1", DigestInterval: time.Second, TopN: 1}
			},
			wantErr: true,
		},
		{
			name:    "missing pools url",
			mutate:  func(c *Config) { c.DefiLlama.PoolsURL = "" },
			wantErr: true,
		},
		{
			name:    "timeout too short",
			mutate:  func(c *Config) { c.DefiLlama.Timeout = time.Millisecond },
			wantErr: true,
		},
		{
			name:    "negative default limit",
			mutate:  func(c *Config) { c.Scoring.DefaultLimit = -1 },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CURATOR_SERVER_ADDRESS", ":9999")
	t.Setenv("CURATOR_CACHE_TTL", "30s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("Expected env override for address, got %s", cfg.Server.Address)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Expected env override for cache ttl, got %v", cfg.Cache.TTL)
	}
}
