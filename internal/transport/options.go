package transport

import (
	"time"

	"github.com/1ureka/p2pcall/internal/protocol"
	"github.com/1ureka/p2pcall/internal/util"
)

// Defaults for a Connection.
const (
	DefaultPort              = 8000
	DefaultHeartbeatInterval = 1 * time.Second
	DefaultHeartbeatTimeout  = 10 * time.Second
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultQueueCapacity     = 100
	DefaultDialTimeout       = 5 * time.Second
	DefaultJoinTimeout       = 1 * time.Second
)

// heartbeatTimeoutFactor sets HeartbeatTimeout when the configured one does not exceed
// HeartbeatInterval.
const heartbeatTimeoutFactor = DefaultHeartbeatTimeout / DefaultHeartbeatInterval

// directWriteTimeout bounds the out-of-band writes made during teardown.
const directWriteTimeout = 250 * time.Millisecond

// Options tunes a Connection. Zero fields take the defaults above.
type Options struct {
	HeartbeatInterval time.Duration // how often PING is enqueued
	HeartbeatTimeout  time.Duration // silence after which the peer is declared dead
	PollInterval      time.Duration // loop wake-up period
	QueueCapacity     int           // outbound envelopes buffered before ErrQueueFull
	MaxFrameSize      uint32        // largest payload sent or accepted
	DialTimeout       time.Duration
	JoinTimeout       time.Duration // how long Disconnect waits for each loop

	Observer Observer // optional
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if o.HeartbeatTimeout <= o.HeartbeatInterval {
		raised := o.HeartbeatInterval * heartbeatTimeoutFactor
		util.LogWarning("heartbeat timeout %s does not exceed interval %s, using %s",
			o.HeartbeatTimeout, o.HeartbeatInterval, raised)
		o.HeartbeatTimeout = raised
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}
