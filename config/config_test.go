package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 24, cfg.OutboxSize)
	assert.Equal(t, 24, cfg.CommandQueueSize)
	assert.Equal(t, int64(64*1024), cfg.MaxMessageSize)
	assert.Equal(t, 24*time.Hour, cfg.PresenceTTL)
	assert.Zero(t, cfg.PingPeriod)
}

func TestProductionListensOnAllInterfaces(t *testing.T) {
	cfg, err := Load([]string{"--environment", "production"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("SIGNALING_ADDR", "127.0.0.1:9000")
	t.Setenv("SIGNALING_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SIGNALING_PING_PERIOD", "30s")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.PingPeriod)
}

func TestFlagOverridesEnv(t *testing.T) {
	t.Setenv("SIGNALING_ADDR", "127.0.0.1:9000")

	cfg, err := Load([]string{"--addr", "127.0.0.1:9100", "--redis-addr", "localhost:6379"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signaling.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: 127.0.0.1:7000\noutbox-size: 8\n"), 0o644))

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, 8, cfg.OutboxSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string][]string{
		"environment":  {"--environment", "staging"},
		"addr":         {"--addr", "no-port"},
		"outbox":       {"--outbox-size", "0"},
		"queue":        {"--command-queue-size", "-1"},
		"message size": {"--max-message-size", "0"},
		"ping":         {"--ping-period", "-1s"},
		"unknown flag": {"--nope"},
		"missing file": {"--config", "/does/not/exist.yaml"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(args)
			assert.Error(t, err)
		})
	}
}
