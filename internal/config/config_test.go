package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	if cfg.Engine.BinaryPath != "stockfish" {
		t.Errorf("Expected default binary path 'stockfish', got %s", cfg.Engine.BinaryPath)
	}
	if cfg.Engine.Depth != 18 {
		t.Errorf("Expected default depth 18, got %d", cfg.Engine.Depth)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Logging.Level)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("Expected rate limiting to be enabled by default")
	}
	if !cfg.Cache.Enabled {
		t.Error("Expected probe cache to be enabled by default")
	}
	if cfg.Engine.RequestTimeout().Seconds() != 30 {
		t.Errorf("Expected 30s request timeout, got %v", cfg.Engine.RequestTimeout())
	}
}

func TestLoadConfigFromJSONFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	testConfig := Config{
		Engine: EngineConfig{
			BinaryPath: "stockfish-16",
			Threads:    4,
			Depth:      22,
			SyzygyPath: "/tb/syzygy",
		},
		Logging: LoggingConfig{
			Level: "debug",
		},
		RateLimit: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 120,
		},
	}

	data, err := json.MarshalIndent(testConfig, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config from file: %v", err)
	}

	if cfg.Engine.BinaryPath != testConfig.Engine.BinaryPath {
		t.Errorf("Expected binary path %s, got %s", testConfig.Engine.BinaryPath, cfg.Engine.BinaryPath)
	}
	if cfg.Engine.Threads != 4 {
		t.Errorf("Expected threads 4, got %d", cfg.Engine.Threads)
	}
	if cfg.Engine.SyzygyPath != "/tb/syzygy" {
		t.Errorf("Expected syzygy path, got %q", cfg.Engine.SyzygyPath)
	}
	if cfg.Logging.Level != testConfig.Logging.Level {
		t.Errorf("Expected log level %s, got %s", testConfig.Logging.Level, cfg.Logging.Level)
	}
	if cfg.RateLimit.Enabled {
		t.Error("Expected rate limit to be disabled")
	}
}

func TestLoadConfigFromYAMLFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlConfig := `
engine:
  binaryPath: sf
  depth: 12
  moveTimeMs: 500
logging:
  level: warn
  format: console
cache:
  enabled: true
  ttlSeconds: 60
  redisURL: redis://localhost:6379/0
`
	if err := os.WriteFile(configPath, []byte(yamlConfig), 0644); err != nil {
		t.Fatalf("Failed to write yaml config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load yaml config: %v", err)
	}

	if cfg.Engine.BinaryPath != "sf" || cfg.Engine.Depth != 12 || cfg.Engine.MoveTimeMs != 500 {
		t.Errorf("Unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected console format, got %s", cfg.Logging.Format)
	}
	if cfg.Cache.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Expected redis url, got %s", cfg.Cache.RedisURL)
	}
	if cfg.Cache.TTL().Seconds() != 60 {
		t.Errorf("Expected 60s ttl, got %v", cfg.Cache.TTL())
	}
	// Defaults survive for keys the file omits
	if cfg.Engine.HashMB != 64 {
		t.Errorf("Expected default hash 64, got %d", cfg.Engine.HashMB)
	}
}

func TestLoadConfigRejectsBadFormat(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{"logging":{"format":"xml"}}`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for unknown log format")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STOCKFISH_PATH", "/ignored/because/engine/path/wins")
	t.Setenv("ENDGAME_MCP_ENGINE_PATH", "custom-stockfish")
	t.Setenv("ENDGAME_MCP_ENGINE_DEPTH", "9")
	t.Setenv("ENDGAME_MCP_LOG_LEVEL", "debug")
	t.Setenv("ENDGAME_MCP_RATE_LIMIT_ENABLED", "false")
	t.Setenv("ENDGAME_MCP_REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config with env overrides: %v", err)
	}

	if cfg.Engine.BinaryPath != "custom-stockfish" {
		t.Errorf("Expected env override for binary path, got %s", cfg.Engine.BinaryPath)
	}
	if cfg.Engine.Depth != 9 {
		t.Errorf("Expected env override for depth, got %d", cfg.Engine.Depth)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected env override for log level, got %s", cfg.Logging.Level)
	}
	if cfg.RateLimit.Enabled {
		t.Error("Expected rate limiting to be disabled by env override")
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/1" {
		t.Errorf("Expected env override for redis url, got %s", cfg.Cache.RedisURL)
	}
}

func TestStockfishPathEnv(t *testing.T) {
	t.Setenv("STOCKFISH_PATH", "sf-from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Engine.BinaryPath != "sf-from-env" {
		t.Errorf("Expected STOCKFISH_PATH override, got %s", cfg.Engine.BinaryPath)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			wantError: false,
		},
		{
			name: "negative threads",
			modify: func(c *Config) {
				c.Engine.Threads = -1
			},
			wantError: false, // corrected to 1
		},
		{
			name: "no search budget",
			modify: func(c *Config) {
				c.Engine.Depth = 0
				c.Engine.MoveTimeMs = 0
			},
			wantError: false, // corrected to depth 1
		},
		{
			name: "missing absolute binary",
			modify: func(c *Config) {
				c.Engine.BinaryPath = "/definitely/not/here/stockfish"
			},
			wantError: true,
		},
		{
			name: "missing fixture",
			modify: func(c *Config) {
				c.Tablebase.FixturePath = "/definitely/not/here.json"
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.validate()

			if (err != nil) != tt.wantError {
				t.Errorf("validate() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError {
				return
			}

			if cfg.Engine.Threads < 1 {
				t.Error("Threads should be at least 1")
			}
			if cfg.Engine.Depth < 1 && cfg.Engine.MoveTimeMs < 1 {
				t.Error("Either depth or move time must be set")
			}
			if cfg.Engine.RequestTimeoutSec < 1 {
				t.Error("RequestTimeoutSec should be at least 1")
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ENDGAME_MCP_CONFIG", "/custom/config.yaml")

	path := GetConfigPath()
	if path != "/custom/config.yaml" {
		t.Errorf("Expected env var path, got %s", path)
	}

	os.Unsetenv("ENDGAME_MCP_CONFIG")
	path = GetConfigPath()
	t.Logf("Config path without env var: %s", path)
}
