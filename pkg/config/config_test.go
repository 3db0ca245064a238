package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
environment: test
server:
  port: 8080
  read_timeout: 15s
logging:
  level: debug
  collector:
    enabled: true
    interval: 45s
    threshold: 250
engine:
  workers: 4
  request_timeout: 2m
history:
  backend: memory
  limit: 10
backend:
  type: clickhouse
kafka:
  brokers: ["localhost:9092"]
  topic: runs.completed
clickhouse:
  host: localhost
  database: foliosim
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Engine.RequestTimeout)
	assert.True(t, cfg.Logging.Collector.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Logging.Collector.Interval)
	assert.Equal(t, 250, cfg.Logging.Collector.Threshold)
	assert.Equal(t, "clickhouse", cfg.Backend.Type)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing environment",
			mutate:  func(c *Config) { c.Environment = "" },
			wantErr: "environment",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend.Type = "postgres" },
			wantErr: "backend.type",
		},
		{
			name: "kafka backend without brokers",
			mutate: func(c *Config) {
				c.Backend.Type = "kafka"
				c.Kafka.Brokers = nil
			},
			wantErr: "kafka.brokers",
		},
		{
			name:    "missing clickhouse host",
			mutate:  func(c *Config) { c.ClickHouse.Host = "" },
			wantErr: "clickhouse.host",
		},
		{
			name: "redis history without redis",
			mutate: func(c *Config) {
				c.History.Backend = "redis"
				c.Redis.Enabled = false
			},
			wantErr: "history.backend",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Engine.Workers = -1 },
			wantErr: "engine.workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validYAML))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_TOPIC", "runs.archive")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("WEBHOOK_URL", "http://hooks.local/runs")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Backend.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "runs.archive", cfg.Kafka.Topic)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "http://hooks.local/runs", cfg.Notify.WebhookURL)
}
