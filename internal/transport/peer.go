package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/1ureka/p2pcall/internal/util"
)

// listen binds a TCP listener on every interface.
func listen(port int) (net.Listener, error) {
	addr := net.JoinHostPort("", strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	return ln, nil
}

// dial opens the client socket.
func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	tuneSocket(conn)
	return conn, nil
}

// tuneSocket disables Nagle so small control frames are not held back behind media.
func tuneSocket(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(true); err != nil {
		util.LogDebug("set TCP_NODELAY on %s: %v", conn.RemoteAddr(), err)
	}
	if err := tc.SetKeepAlive(true); err != nil {
		util.LogDebug("set keepalive on %s: %v", conn.RemoteAddr(), err)
	}
}

// acceptLoop waits for the single peer of a hosted session. The listener is closed as
// soon as one peer is accepted.
func (c *Connection) acceptLoop(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		if c.isClosed() {
			return
		}
		util.LogError("accept on %s failed: %v", ln.Addr(), err)
		c.disconnect(loopAccept, errors.Wrap(err, "accept"))
		return
	}
	_ = ln.Close()
	tuneSocket(conn)

	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.listener = nil
	c.attach(conn)
	c.mu.Unlock()

	c.callback(loopAccept, c.fireConnect)
}
