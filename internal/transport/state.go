package transport

import (
	"fmt"
	"time"

	"github.com/1ureka/p2pcall/internal/protocol"
)

// State is the lifecycle state of a Connection.
//
//	Idle ─Host─▶ Listening ─accept─▶ Connected ─▶ Closed
//	Idle ─Connect─▶ Connecting ─dial─▶ Connected ─▶ Closed
//
// A failed dial returns Connecting to Idle. Closed is terminal.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateConnecting
	StateConnected
	StateClosed
)

var stateNames = [...]string{"idle", "listening", "connecting", "connected", "closed"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// active reports whether Disconnect has work to do in this state.
func (s State) active() bool {
	return s == StateListening || s == StateConnecting || s == StateConnected
}

// Role represents which side of the call this process plays.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Statistics is a snapshot of a Connection's counters and addresses.
type Statistics struct {
	BytesSent        int64     `json:"bytes_sent"`
	BytesReceived    int64     `json:"bytes_received"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	Connected        bool      `json:"connected"`
	RemoteAddress    string    `json:"remote_address"`
	LocalAddress     string    `json:"local_address"`
	State            State     `json:"state"`
	Role             Role      `json:"role"`
	LastHeartbeat    time.Time `json:"last_heartbeat"`
	LastPong         time.Time `json:"last_pong"`
}

// Handlers are the application callbacks. Every field is optional.
//
// Media, control and status callbacks run on the receive goroutine, so a slow handler
// delays every later frame. OnConnect runs on the goroutine that completed the
// connection: the accept goroutine for a host, the caller of Connect for a client.
// OnDisconnect runs on whichever goroutine tore the connection down.
//
// The receive loop checks for teardown before each dispatch. A callback already running
// when another goroutine calls Disconnect is not waited for, so it may still be
// returning after OnDisconnect has fired.
type Handlers struct {
	OnVideoFrame func(protocol.VideoFrame)
	OnAudioFrame func(protocol.AudioFrame)
	OnControl    func(protocol.ControlType, string) // VIDEO_*/AUDIO_* only
	OnStatus     func(protocol.StatusMessage)
	OnConnect    func()
	OnDisconnect func()
}

// Observer receives traffic and lifecycle events, typically to feed metrics. Methods
// are called synchronously from the hot path and must not block or call back into the
// Connection.
type Observer interface {
	FrameSent(kind protocol.PayloadKind, bytes int)
	FrameReceived(kind protocol.PayloadKind, bytes int)
	FrameDropped(kind protocol.PayloadKind)
	StateChanged(state State)
}

type nopObserver struct{}

func (nopObserver) FrameSent(protocol.PayloadKind, int)     {}
func (nopObserver) FrameReceived(protocol.PayloadKind, int) {}
func (nopObserver) FrameDropped(protocol.PayloadKind)       {}
func (nopObserver) StateChanged(State)                      {}
