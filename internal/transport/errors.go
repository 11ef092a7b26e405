package transport

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned by the Send* methods outside the Connected state.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrQueueFull is returned when the outbound queue is at capacity. The message is
	// dropped; the connection stays up.
	ErrQueueFull = errors.New("transport: send queue full")

	// ErrAlreadyStarted is returned by Host and Connect on a connection that has left Idle.
	ErrAlreadyStarted = errors.New("transport: connection already started")

	// ErrClosed is returned by Connect when Disconnect ran while the dial was in flight.
	ErrClosed = errors.New("transport: connection closed")

	// ErrHeartbeatTimeout is the Err() of a connection whose peer went silent.
	ErrHeartbeatTimeout = errors.New("transport: heartbeat timeout")

	// ErrPeerDisconnected is the Err() of a connection closed by a DISCONNECT or EOF
	// from the peer.
	ErrPeerDisconnected = errors.New("transport: peer disconnected")
)

// BindError reports that Host could not listen on the requested port.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("transport: bind port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the underlying net error.
func (e *BindError) Cause() error { return e.Err }

// ConnectError reports a refused, unreachable or timed-out dial.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Cause() error { return e.Err }
