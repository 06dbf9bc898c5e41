package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_REDIS_URL", "redis://localhost:6380/0")
	defer os.Unsetenv("TEST_REDIS_URL")

	// Create temp config file
	configContent := `
pools:
  - name: primary
    type: redis
    url: ${TEST_REDIS_URL}
route: primary
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pools[0].URL != "redis://localhost:6380/0" {
		t.Errorf("Expected URL redis://localhost:6380/0, got %s", cfg.Pools[0].URL)
	}
}

func TestParseDefaultsAndRoute(t *testing.T) {
	cfg, err := Parse([]byte(`
pools:
  - name: a
  - name: b
    timeout: 50ms
    tko_threshold: 3
route:
  type: FailoverWithExptimeRoute
  normal: a
  failover: [b]
  settings:
    data_timeout: {gets: true, updates: true}
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, PoolMemory, cfg.Pools[0].Type)
	assert.Equal(t, 200*time.Millisecond, cfg.Pools[0].Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Pools[1].Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Pools[1].Redis().Timeout)
	assert.Equal(t, 5*time.Second, cfg.Pools[1].TkoCooldown)
	assert.Equal(t, 3, cfg.Pools[1].Health().Threshold)

	route, ok := cfg.Route.(map[interface{}]interface{})
	require.True(t, ok, "route should decode as a YAML map, got %T", cfg.Route)
	assert.Equal(t, "FailoverWithExptimeRoute", route["type"])
}

func TestParseValidation(t *testing.T) {
	tests := map[string]string{
		"missing route":  "pools: [{name: a}]\n",
		"unnamed pool":   "pools: [{type: memory}]\nroute: a\n",
		"duplicate pool": "pools: [{name: a}, {name: a}]\nroute: a\n",
		"redis no url":   "pools: [{name: a, type: redis}]\nroute: a\n",
		"unknown type":   "pools: [{name: a, type: mysql}]\nroute: a\n",
		"stream no url":  "pools: [{name: a}]\nroute: a\nsinks: {redis_stream: {stream: s}}\n",
		"log format":     "pools: [{name: a}]\nroute: a\nlogging: {format: xml}\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Parse([]byte("pools: [\n"))
	require.Error(t, err)
}
