// Package config holds the CLI configuration types and their loader.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/1ureka/p2pcall/internal/protocol"
	"github.com/1ureka/p2pcall/internal/transport"
)

// Role represents the user's chosen role (host or client).
type Role = transport.Role

const (
	RoleHost   = transport.RoleHost
	RoleClient = transport.RoleClient
)

// Config keys, shared by the config file, P2PCALL_* environment variables and CLI flags.
const (
	KeyPort              = "port"
	KeyHost              = "host"
	KeyHeartbeatInterval = "heartbeat_interval"
	KeyHeartbeatTimeout  = "heartbeat_timeout"
	KeyPollInterval      = "poll_interval"
	KeyQueueCapacity     = "queue_capacity"
	KeyMaxFrameSize      = "max_frame_size"
	KeyDialTimeout       = "dial_timeout"
	KeyJoinTimeout       = "join_timeout"
	KeyMonitorAddr       = "monitor_addr"
	KeyPattern           = "pattern"
	KeyVideoFPS          = "video_fps"
	KeyVideoWidth        = "video_width"
	KeyVideoHeight       = "video_height"
	KeyDebug             = "debug"
)

// Config stores every runtime parameter of a session.
type Config struct {
	Role Role
	Host string // Client: address of the host to dial
	Port int    // Host: listen port; Client: remote port

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	PollInterval      time.Duration
	QueueCapacity     int
	MaxFrameSize      uint32
	DialTimeout       time.Duration
	JoinTimeout       time.Duration

	MonitorAddr string // "" disables the monitor server
	Pattern     bool   // stream the synthetic test pattern
	VideoFPS    int
	VideoWidth  int
	VideoHeight int

	Debug bool
}

// New returns a viper instance with defaults, environment binding and the config file
// search path set up. Callers bind CLI flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyPort, transport.DefaultPort)
	v.SetDefault(KeyHost, "")
	v.SetDefault(KeyHeartbeatInterval, transport.DefaultHeartbeatInterval)
	v.SetDefault(KeyHeartbeatTimeout, transport.DefaultHeartbeatTimeout)
	v.SetDefault(KeyPollInterval, transport.DefaultPollInterval)
	v.SetDefault(KeyQueueCapacity, transport.DefaultQueueCapacity)
	v.SetDefault(KeyMaxFrameSize, protocol.DefaultMaxFrameSize)
	v.SetDefault(KeyDialTimeout, transport.DefaultDialTimeout)
	v.SetDefault(KeyJoinTimeout, transport.DefaultJoinTimeout)
	v.SetDefault(KeyMonitorAddr, "")
	v.SetDefault(KeyPattern, true)
	v.SetDefault(KeyVideoFPS, 15)
	v.SetDefault(KeyVideoWidth, 160)
	v.SetDefault(KeyVideoHeight, 120)
	v.SetDefault(KeyDebug, false)

	// Environment variables: P2PCALL_PORT, P2PCALL_HEARTBEAT_TIMEOUT, ...
	v.SetEnvPrefix("P2PCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Config file
	v.SetConfigName("p2pcall")
	v.SetConfigType("yaml")
	for _, path := range []string{".", "$HOME/.p2pcall", "/etc/p2pcall"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	return v
}

// Load reads the config file (configFile if set, otherwise the search path; a missing
// file is not an error) and returns the validated Config for role.
func Load(v *viper.Viper, role Role, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{
		Role:              role,
		Host:              v.GetString(KeyHost),
		Port:              v.GetInt(KeyPort),
		HeartbeatInterval: v.GetDuration(KeyHeartbeatInterval),
		HeartbeatTimeout:  v.GetDuration(KeyHeartbeatTimeout),
		PollInterval:      v.GetDuration(KeyPollInterval),
		QueueCapacity:     v.GetInt(KeyQueueCapacity),
		MaxFrameSize:      v.GetUint32(KeyMaxFrameSize),
		DialTimeout:       v.GetDuration(KeyDialTimeout),
		JoinTimeout:       v.GetDuration(KeyJoinTimeout),
		MonitorAddr:       v.GetString(KeyMonitorAddr),
		Pattern:           v.GetBool(KeyPattern),
		VideoFPS:          v.GetInt(KeyVideoFPS),
		VideoWidth:        v.GetInt(KeyVideoWidth),
		VideoHeight:       v.GetInt(KeyVideoHeight),
		Debug:             v.GetBool(KeyDebug),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the transport cannot run with. Port 0 is allowed for a host
// (ephemeral) but not for a client.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d: must be 0~65535", c.Port)
	case c.Role == RoleClient && c.Port == 0:
		return errors.New("invalid port 0: a client needs the host's port")
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("invalid heartbeat_interval %s: must be positive", c.HeartbeatInterval)
	case c.HeartbeatTimeout <= c.HeartbeatInterval:
		return fmt.Errorf("invalid heartbeat_timeout %s: must exceed heartbeat_interval %s",
			c.HeartbeatTimeout, c.HeartbeatInterval)
	case c.PollInterval <= 0:
		return fmt.Errorf("invalid poll_interval %s: must be positive", c.PollInterval)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("invalid queue_capacity %d: must be positive", c.QueueCapacity)
	case c.MaxFrameSize == 0:
		return errors.New("invalid max_frame_size 0")
	case c.Pattern && (c.VideoFPS <= 0 || c.VideoWidth <= 0 || c.VideoHeight <= 0):
		return fmt.Errorf("invalid test pattern %dx%d@%d", c.VideoWidth, c.VideoHeight, c.VideoFPS)
	}
	return nil
}

// TransportOptions derives the Connection settings.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatTimeout:  c.HeartbeatTimeout,
		PollInterval:      c.PollInterval,
		QueueCapacity:     c.QueueCapacity,
		MaxFrameSize:      c.MaxFrameSize,
		DialTimeout:       c.DialTimeout,
		JoinTimeout:       c.JoinTimeout,
	}
}
