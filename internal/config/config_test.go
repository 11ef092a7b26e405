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
	t.Chdir(t.TempDir()) // keep a stray ./p2pcall.yaml out of the test

	cfg, err := Load(New(), RoleHost, "")
	require.NoError(t, err)

	assert.Equal(t, RoleHost, cfg.Role)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 100, cfg.QueueCapacity)
	assert.Equal(t, uint32(16<<20), cfg.MaxFrameSize)
	assert.True(t, cfg.Pattern)
	assert.Empty(t, cfg.MonitorAddr)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "p2pcall.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"host: 10.0.0.7\nport: 9000\nheartbeat_interval: 2s\nheartbeat_timeout: 15s\nmonitor_addr: 127.0.0.1:9090\n",
	), 0o644))

	t.Setenv("P2PCALL_PORT", "9100")
	t.Setenv("P2PCALL_QUEUE_CAPACITY", "8")

	cfg, err := Load(New(), RoleClient, file)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.Host)
	assert.Equal(t, 9100, cfg.Port, "environment overrides the file")
	assert.Equal(t, 8, cfg.QueueCapacity)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, "127.0.0.1:9090", cfg.MonitorAddr)

	opts := cfg.TransportOptions()
	assert.Equal(t, 2*time.Second, opts.HeartbeatInterval)
	assert.Equal(t, 8, opts.QueueCapacity)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), RoleHost, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Role:              RoleHost,
			Port:              8000,
			HeartbeatInterval: time.Second,
			HeartbeatTimeout:  10 * time.Second,
			PollInterval:      100 * time.Millisecond,
			QueueCapacity:     100,
			MaxFrameSize:      1 << 20,
			Pattern:           true,
			VideoFPS:          15,
			VideoWidth:        160,
			VideoHeight:       120,
		}
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"host ephemeral port", func(c *Config) { c.Port = 0 }, true},
		{"client port zero", func(c *Config) { c.Role = RoleClient; c.Port = 0 }, false},
		{"port out of range", func(c *Config) { c.Port = 70000 }, false},
		{"timeout equals interval", func(c *Config) { c.HeartbeatTimeout = c.HeartbeatInterval }, false},
		{"zero capacity", func(c *Config) { c.QueueCapacity = 0 }, false},
		{"zero frame size", func(c *Config) { c.MaxFrameSize = 0 }, false},
		{"bad pattern", func(c *Config) { c.VideoFPS = 0 }, false},
		{"bad pattern ignored when off", func(c *Config) { c.VideoFPS = 0; c.Pattern = false }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
