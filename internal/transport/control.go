package transport

import (
	"fmt"

	"github.com/1ureka/p2pcall/internal/protocol"
)

// controlTable maps each control type to its handler. Types missing from the table are
// logged and ignored so newer peers can add signals.
func (c *Connection) controlTable() map[protocol.ControlType]func(*protocol.ControlMessage) {
	return map[protocol.ControlType]func(*protocol.ControlMessage){
		protocol.ControlConnect:    c.onConnectMsg,
		protocol.ControlDisconnect: c.onDisconnectMsg,
		protocol.ControlPing:       c.onPing,
		protocol.ControlPong:       c.onPong,
		protocol.ControlVideoOn:    c.onMediaToggle,
		protocol.ControlVideoOff:   c.onMediaToggle,
		protocol.ControlAudioOn:    c.onMediaToggle,
		protocol.ControlAudioOff:   c.onMediaToggle,
	}
}

// handleControl runs on the receive goroutine.
func (c *Connection) handleControl(msg *protocol.ControlMessage) {
	fn, ok := c.control[msg.Type]
	if !ok {
		c.log.Warning("ignoring unknown control message %s", msg.Type)
		return
	}
	fn(msg)
}

// onConnectMsg validates the peer's marker and answers with our own CONNECT unless we
// opened the handshake.
func (c *Connection) onConnectMsg(msg *protocol.ControlMessage) {
	if err := protocol.CheckMarker(msg.Data); err != nil {
		c.rejectPeer(err)
		return
	}

	if c.handshakeSent.CompareAndSwap(false, true) {
		if err := c.enqueue(protocol.NewControl(protocol.ControlConnect, protocol.Marker())); err != nil {
			c.log.Warning("could not answer CONNECT: %v", err)
			return
		}
	}
	c.log.Debug("handshake complete (peer %q)", msg.Data)
}

// rejectPeer tells an incompatible peer why and hangs up. The status goes out before
// the DISCONNECT written by teardown.
func (c *Connection) rejectPeer(err error) {
	c.log.Warning("rejecting peer: %v", err)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.writeDirect(conn, protocol.NewEnvelope(&protocol.StatusMessage{
			Type:    protocol.StatusError,
			Message: fmt.Sprintf("incompatible protocol, expected %s", protocol.Marker()),
			Code:    protocol.CodeIncompatibleProtocol,
		}))
	}
	c.disconnect(loopRecv, err)
}

func (c *Connection) onDisconnectMsg(*protocol.ControlMessage) {
	c.log.Info("peer requested disconnect")
	c.disconnect(loopRecv, ErrPeerDisconnected)
}

func (c *Connection) onPing(*protocol.ControlMessage) {
	if err := c.enqueue(protocol.NewControl(protocol.ControlPong, "")); err != nil {
		c.log.Debug("PONG not queued: %v", err)
	}
}

func (c *Connection) onPong(*protocol.ControlMessage) {
	c.lastPong.Store(nowNano())
}

// onMediaToggle forwards VIDEO_*/AUDIO_* verbatim. The local send path is unaffected.
func (c *Connection) onMediaToggle(msg *protocol.ControlMessage) {
	if fn := c.handlers.OnControl; fn != nil {
		c.callback(loopRecv, func() { fn(msg.Type, msg.Data) })
	}
}
