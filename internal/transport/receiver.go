package transport

import (
	"bufio"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/1ureka/p2pcall/internal/protocol"
)

const readBufferSize = 64 * 1024

// recvLoop reads frames until the socket fails or the peer goes quiet.
//
// Between frames it waits for the first byte with a short deadline so the heartbeat
// can be checked every PollInterval. Once a frame has started, the remainder must
// arrive within HeartbeatTimeout; a partial frame is never abandoned half-read.
func (c *Connection) recvLoop(conn net.Conn) {
	r := bufio.NewReaderSize(conn, readBufferSize)

	for {
		if c.isClosed() {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PollInterval))
		if _, err := r.Peek(1); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if c.heartbeatExpired() {
					c.log.Warning("no frame from peer for %s", c.opts.HeartbeatTimeout)
					c.disconnect(loopRecv, ErrHeartbeatTimeout)
					return
				}
				continue
			}
			c.recvFailed(err)
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.opts.HeartbeatTimeout))
		payload, err := protocol.UnframeLimit(r, c.opts.MaxFrameSize)
		if err != nil {
			c.recvFailed(err)
			return
		}

		c.lastHeartbeat.Store(time.Now().UnixNano())

		env, err := protocol.Decode(payload)
		if err != nil {
			c.recvFailed(err)
			return
		}

		n := len(payload) + protocol.FrameHeaderSize
		c.bytesReceived.Add(int64(n))
		c.msgsReceived.Add(1)
		c.observer.FrameReceived(env.Payload.Kind(), n)

		if c.isClosed() {
			return
		}
		c.dispatch(env)
	}
}

func (c *Connection) heartbeatExpired() bool {
	last := c.lastHeartbeat.Load()
	return time.Duration(time.Now().UnixNano()-last) > c.opts.HeartbeatTimeout
}

// recvFailed classifies a fatal read error and tears the connection down.
func (c *Connection) recvFailed(err error) {
	if c.isClosed() {
		return
	}

	switch {
	case errors.Is(err, io.EOF):
		c.log.Info("peer closed the connection")
		err = ErrPeerDisconnected
	case protocol.IsDecodeError(err, protocol.UnknownPayloadType):
		c.log.Error("unknown payload from peer: %v", err)
	default:
		c.log.Error("receive failed: %v", err)
		err = errors.Wrap(err, "receive")
	}
	c.disconnect(loopRecv, err)
}

// dispatch routes one decoded envelope. Control messages go through the control table;
// media and status go straight to the application.
func (c *Connection) dispatch(env *protocol.Envelope) {
	switch p := env.Payload.(type) {
	case *protocol.VideoFrame:
		if fn := c.handlers.OnVideoFrame; fn != nil {
			c.callback(loopRecv, func() { fn(*p) })
		}
	case *protocol.AudioFrame:
		if fn := c.handlers.OnAudioFrame; fn != nil {
			c.callback(loopRecv, func() { fn(*p) })
		}
	case *protocol.StatusMessage:
		if fn := c.handlers.OnStatus; fn != nil {
			c.callback(loopRecv, func() { fn(*p) })
		}
	case *protocol.ControlMessage:
		c.handleControl(p)
	}
}
