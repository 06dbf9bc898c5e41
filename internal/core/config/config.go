package config

import (
	"time"

	"github.com/vietddude/mcroute/internal/infra/backend"
	"github.com/vietddude/mcroute/internal/infra/sink"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Pools   []PoolConfig  `yaml:"pools"`
	Sinks   SinksConfig   `yaml:"sinks"`

	// Route is the route descriptor: a pool or route name, a "Type|arg"
	// string, or an object with a "type" field.
	Route any `yaml:"route"`
}

// ServerConfig holds HTTP debug server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProxyConfig holds request admission settings.
type ProxyConfig struct {
	MaxInFlight int64 `yaml:"max_in_flight"`
}

// PoolType selects the backend client for a pool.
type PoolType string

const (
	PoolMemory PoolType = "memory"
	PoolRedis  PoolType = "redis"
)

// PoolConfig holds settings for one backend pool.
type PoolConfig struct {
	Name     string        `yaml:"name"`
	Type     PoolType      `yaml:"type"`
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`

	TkoThreshold int           `yaml:"tko_threshold"` // 0 = never mark TKO
	TkoCooldown  time.Duration `yaml:"tko_cooldown"`
}

// Redis returns the backend connection settings for a redis pool.
func (p PoolConfig) Redis() backend.RedisConfig {
	return backend.RedisConfig{URL: p.URL, Password: p.Password, Timeout: p.Timeout}
}

// Health returns the TKO tracking settings for the pool.
func (p PoolConfig) Health() backend.HealthConfig {
	return backend.HealthConfig{Threshold: p.TkoThreshold, Cooldown: p.TkoCooldown}
}

// SinksConfig selects where logging routes send their records.
type SinksConfig struct {
	Log         bool                    `yaml:"log"`
	RedisStream *sink.RedisStreamConfig `yaml:"redis_stream"`
}
