package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// UCI engine configuration
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`

	// Tablebase probe cache
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Tablebase data source
	Tablebase TablebaseConfig `json:"tablebase" yaml:"tablebase"`
}

type EngineConfig struct {
	BinaryPath        string `json:"binaryPath" yaml:"binaryPath"`
	Threads           int    `json:"threads" yaml:"threads"`
	HashMB            int    `json:"hashMB" yaml:"hashMB"`
	Depth             int    `json:"depth" yaml:"depth"`
	MoveTimeMs        int    `json:"moveTimeMs" yaml:"moveTimeMs"`
	RequestTimeoutSec int    `json:"requestTimeoutSec" yaml:"requestTimeoutSec"`
	SyzygyPath        string `json:"syzygyPath" yaml:"syzygyPath"`
}

// RequestTimeout bounds how long a tool call waits for the engine.
func (e EngineConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSec) * time.Second
}

type ServerConfig struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
	HealthAddr  string `json:"healthAddr" yaml:"healthAddr"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	// File, when set, receives a copy of every log line.
	File string `json:"file" yaml:"file"`
}

type RateLimitConfig struct {
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	RequestsPerMin int            `json:"requestsPerMin" yaml:"requestsPerMin"`
	BurstSize      int            `json:"burstSize" yaml:"burstSize"`
	PerToolLimits  map[string]int `json:"perToolLimits" yaml:"perToolLimits"`
}

type CacheConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	MaxItems     int    `json:"maxItems" yaml:"maxItems"`
	MaxSizeBytes int64  `json:"maxSizeBytes" yaml:"maxSizeBytes"`
	TTLSeconds   int    `json:"ttlSeconds" yaml:"ttlSeconds"`
	RedisURL     string `json:"redisURL" yaml:"redisURL"`
}

// TTL returns the configured entry lifetime; zero means no expiry.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type TablebaseConfig struct {
	// FixturePath points at a JSON or YAML file of probed positions.
	FixturePath string `json:"fixturePath" yaml:"fixturePath"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			BinaryPath:        "stockfish",
			Threads:           1,
			HashMB:            64,
			Depth:             18,
			RequestTimeoutSec: 30,
		},
		Server: ServerConfig{
			Name:        "endgame-mcp",
			Version:     "0.1.0",
			Description: "Chess endgame training server for MCP",
			HealthAddr:  ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 60,
			BurstSize:      10,
			PerToolLimits:  make(map[string]int),
		},
		Cache: CacheConfig{
			Enabled:      true,
			MaxItems:     1000,
			MaxSizeBytes: 16 * 1024 * 1024,
			TTLSeconds:   3600,
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := decode(configPath, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnvOverrides() {
	// Engine settings
	if v := os.Getenv("STOCKFISH_PATH"); v != "" {
		c.Engine.BinaryPath = v
	}
	if v := os.Getenv("ENDGAME_MCP_ENGINE_PATH"); v != "" {
		c.Engine.BinaryPath = v
	}
	if v := os.Getenv("ENDGAME_MCP_SYZYGY_PATH"); v != "" {
		c.Engine.SyzygyPath = v
	}
	if n, ok := envInt("ENDGAME_MCP_ENGINE_DEPTH"); ok {
		c.Engine.Depth = n
	}
	if n, ok := envInt("ENDGAME_MCP_ENGINE_THREADS"); ok {
		c.Engine.Threads = n
	}

	// Logging settings
	if v := os.Getenv("ENDGAME_MCP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ENDGAME_MCP_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}

	// Rate limit settings
	if v := os.Getenv("ENDGAME_MCP_RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = strings.ToLower(v) == "true"
	}

	// Cache and tablebase
	if v := os.Getenv("ENDGAME_MCP_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("ENDGAME_MCP_TABLEBASE_FIXTURE"); v != "" {
		c.Tablebase.FixturePath = v
	}
	if v := os.Getenv("ENDGAME_MCP_HEALTH_ADDR"); v != "" {
		c.Server.HealthAddr = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Config) validate() error {
	if filepath.IsAbs(c.Engine.BinaryPath) {
		if _, err := os.Stat(c.Engine.BinaryPath); err != nil {
			return fmt.Errorf("engine binary not found at %s", c.Engine.BinaryPath)
		}
	}

	if c.Tablebase.FixturePath != "" {
		if _, err := os.Stat(c.Tablebase.FixturePath); err != nil {
			return fmt.Errorf("tablebase fixture not found at %s", c.Tablebase.FixturePath)
		}
	}

	switch c.Logging.Format {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	// Numeric ranges are corrected rather than rejected
	if c.Engine.Threads < 1 {
		c.Engine.Threads = 1
	}
	if c.Engine.HashMB < 1 {
		c.Engine.HashMB = 1
	}
	if c.Engine.Depth < 1 && c.Engine.MoveTimeMs < 1 {
		c.Engine.Depth = 1
	}
	if c.Engine.MoveTimeMs < 0 {
		c.Engine.MoveTimeMs = 0
	}
	if c.Engine.RequestTimeoutSec < 1 {
		c.Engine.RequestTimeoutSec = 1
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 {
			c.RateLimit.RequestsPerMin = 1
		}
		if c.RateLimit.BurstSize < 1 {
			c.RateLimit.BurstSize = 1
		}
	}

	if c.Cache.TTLSeconds < 0 {
		c.Cache.TTLSeconds = 0
	}

	return nil
}

func GetConfigPath() string {
	if path := os.Getenv("ENDGAME_MCP_CONFIG"); path != "" {
		return path
	}

	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{"config.json", "config.yaml"} {
			configPath := filepath.Join(home, ".endgame-mcp", name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}
	}

	return ""
}
