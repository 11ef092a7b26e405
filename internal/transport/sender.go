package transport

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/1ureka/p2pcall/internal/protocol"
)

// sendLoop is the single consumer of the outbox. It also schedules heartbeats: PING is
// enqueued like any other message once HeartbeatInterval has passed since the last one.
func (c *Connection) sendLoop(conn net.Conn) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if c.isClosed() {
			return
		}
		c.schedulePing()

		select {
		case env := <-c.outbox.ch:
			if err := c.writeEnvelope(conn, env); err != nil {
				if c.isClosed() {
					return
				}
				c.log.Error("send %s failed: %v", env.Payload.Kind(), err)
				c.disconnect(loopSend, err)
				return
			}
		case <-ticker.C:
		case <-c.done:
			return
		}
	}
}

func (c *Connection) schedulePing() {
	now := time.Now().UnixNano()
	if time.Duration(now-c.lastPingSent.Load()) < c.opts.HeartbeatInterval {
		return
	}
	c.lastPingSent.Store(now)
	if !c.outbox.push(protocol.NewControl(protocol.ControlPing, "")) {
		c.observer.FrameDropped(protocol.KindControl)
	}
}

// writeEnvelope encodes, frames and writes env under the write lock.
func (c *Connection) writeEnvelope(conn net.Conn, env *protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	c.writeMu.Lock()
	n, err := protocol.WriteFrame(conn, data)
	c.writeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "write")
	}

	c.countSent(env.Payload.Kind(), n)
	return nil
}

// writeDirect writes env outside the outbox, for messages that must precede a close.
// Best effort: it gives up if the write lock stays busy or the socket stalls for
// directWriteTimeout. Called without c.mu.
func (c *Connection) writeDirect(conn net.Conn, env *protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		return
	}

	deadline := time.Now().Add(directWriteTimeout)
	for !c.writeMu.TryLock() {
		if time.Now().After(deadline) {
			c.log.Debug("write lock busy, skipping %s", env.Payload.Kind())
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(deadline)
	n, err := protocol.WriteFrame(conn, data)
	if err != nil {
		c.log.Debug("direct write of %s failed: %v", env.Payload.Kind(), err)
		return
	}
	c.countSent(env.Payload.Kind(), n)
}

func (c *Connection) countSent(kind protocol.PayloadKind, n int) {
	c.bytesSent.Add(int64(n))
	c.msgsSent.Add(1)
	c.observer.FrameSent(kind, n)
}

// ---------------------------------------------------------------------------
// Outbound API
// ---------------------------------------------------------------------------

// enqueue hands env to the send loop without blocking. An envelope larger than
// MaxFrameSize is refused here, since the peer would drop the link over it.
func (c *Connection) enqueue(env *protocol.Envelope) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	if n := protocol.Size(env); uint64(n) > uint64(c.opts.MaxFrameSize) {
		c.observer.FrameDropped(env.Payload.Kind())
		return errors.Wrapf(protocol.ErrFrameTooLarge, "outbound %s %d > %d", env.Payload.Kind(), n, c.opts.MaxFrameSize)
	}
	if !c.outbox.push(env) {
		c.observer.FrameDropped(env.Payload.Kind())
		return ErrQueueFull
	}
	return nil
}

// SendVideoFrame queues one encoded picture. data is not copied and must not be
// modified until the frame has been written.
func (c *Connection) SendVideoFrame(data []byte, width, height uint32, encoding string, frameNumber uint64) error {
	return c.enqueue(protocol.NewEnvelope(&protocol.VideoFrame{
		FrameData:   data,
		Width:       width,
		Height:      height,
		Encoding:    encoding,
		FrameNumber: frameNumber,
	}))
}

// SendAudioFrame queues one block of PCM samples. data is not copied.
func (c *Connection) SendAudioFrame(data []byte, sampleRate, channels uint32, frameNumber uint64) error {
	return c.enqueue(protocol.NewEnvelope(&protocol.AudioFrame{
		AudioData:   data,
		SampleRate:  sampleRate,
		Channels:    channels,
		FrameNumber: frameNumber,
	}))
}

// SendStatus queues a human-readable notice for the peer.
func (c *Connection) SendStatus(typ protocol.StatusType, message string, code int32) error {
	return c.enqueue(protocol.NewEnvelope(&protocol.StatusMessage{
		Type:    typ,
		Message: message,
		Code:    code,
	}))
}

// SetVideoState tells the peer whether local video is on. It does not gate
// SendVideoFrame.
func (c *Connection) SetVideoState(enabled bool) error {
	t := protocol.ControlVideoOff
	if enabled {
		t = protocol.ControlVideoOn
	}
	return c.enqueue(protocol.NewControl(t, ""))
}

// SetAudioState tells the peer whether local audio is on.
func (c *Connection) SetAudioState(enabled bool) error {
	t := protocol.ControlAudioOff
	if enabled {
		t = protocol.ControlAudioOn
	}
	return c.enqueue(protocol.NewControl(t, ""))
}
