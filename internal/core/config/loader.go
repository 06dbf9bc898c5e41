package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references, applies
// defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	for i := range cfg.Pools {
		if cfg.Pools[i].Type == "" {
			cfg.Pools[i].Type = PoolMemory
		}
		if cfg.Pools[i].Timeout == 0 {
			cfg.Pools[i].Timeout = 200 * time.Millisecond
		}
		if cfg.Pools[i].TkoThreshold > 0 && cfg.Pools[i].TkoCooldown == 0 {
			cfg.Pools[i].TkoCooldown = 5 * time.Second
		}
	}
}

// Validate checks the fields the route builder relies on.
func (c *AppConfig) Validate() error {
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json, got %q", ErrInvalidConfig, c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Pools))
	for i, p := range c.Pools {
		if p.Name == "" {
			return fmt.Errorf("%w: pools[%d]: name is required", ErrInvalidConfig, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: pools[%d]: duplicate pool %q", ErrInvalidConfig, i, p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case PoolMemory:
		case PoolRedis:
			if p.URL == "" {
				return fmt.Errorf("%w: pool %q: url is required for redis", ErrInvalidConfig, p.Name)
			}
		default:
			return fmt.Errorf("%w: pool %q: unknown type %q", ErrInvalidConfig, p.Name, p.Type)
		}
	}

	if c.Route == nil {
		return fmt.Errorf("%w: route is required", ErrInvalidConfig)
	}
	if c.Sinks.RedisStream != nil && c.Sinks.RedisStream.URL == "" {
		return fmt.Errorf("%w: sinks.redis_stream.url is required", ErrInvalidConfig)
	}
	return nil
}
