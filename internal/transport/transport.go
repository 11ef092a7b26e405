// Package transport runs a p2pcall session over a single TCP connection.
//
// A Connection plays one of two roles. A host listens and accepts exactly one peer; a
// client dials. Once connected, a send goroutine drains a bounded outbox onto the socket
// and a receive goroutine decodes frames and dispatches them to Handlers, answering
// PING/CONNECT/DISCONNECT itself. Either side failing, or a silent peer, funnels into
// Disconnect.
package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1ureka/p2pcall/internal/protocol"
	"github.com/1ureka/p2pcall/internal/util"
)

// loop identifies a connection goroutine. Values are bits so several can be tracked in
// one atomic word.
type loop uint32

const (
	loopAccept loop = 1 << iota
	loopSend
	loopRecv

	loopNone loop = 0
)

func (l loop) String() string {
	switch l {
	case loopAccept:
		return "accept"
	case loopSend:
		return "send"
	case loopRecv:
		return "receive"
	default:
		return "none"
	}
}

// Connection is one end of a p2pcall session. The zero value is not usable; create it
// with NewConnection. A Connection is single-use: once Closed it stays Closed.
type Connection struct {
	opts     Options
	handlers Handlers
	observer Observer
	outbox   *outbox
	control  map[protocol.ControlType]func(*protocol.ControlMessage)

	mu         sync.Mutex
	state      State
	role       Role
	listener   net.Listener
	conn       net.Conn
	localAddr  string
	remoteAddr string
	log        util.ConnLogger
	done       chan struct{}
	loops      map[loop]chan struct{}
	reason     error

	// writeMu serializes socket writes between the send loop and teardown writes.
	writeMu sync.Mutex

	// inCallback has a loop bit set while that loop runs application code.
	inCallback atomic.Uint32

	handshakeSent atomic.Bool

	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	msgsSent      atomic.Int64
	msgsReceived  atomic.Int64

	// unix nanoseconds, 0 = never
	lastHeartbeat atomic.Int64
	lastPingSent  atomic.Int64
	lastPong      atomic.Int64
}

// NewConnection creates an Idle connection.
func NewConnection(opts Options, handlers Handlers) *Connection {
	opts = opts.withDefaults()
	c := &Connection{
		opts:     opts,
		handlers: handlers,
		observer: opts.Observer,
		outbox:   newOutbox(opts.QueueCapacity),
		state:    StateIdle,
		done:     make(chan struct{}),
		loops:    make(map[loop]chan struct{}, 3),
	}
	c.control = c.controlTable()
	return c
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Host listens on port on all interfaces (0 picks a free port) and returns once the
// listener is bound. The first peer to connect is accepted in the background; later
// dialers are refused.
func (c *Connection) Host(port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrAlreadyStarted
	}

	ln, err := listen(port)
	if err != nil {
		return &BindError{Port: port, Err: err}
	}

	c.role = RoleHost
	c.listener = ln
	c.localAddr = ln.Addr().String()
	c.setState(StateListening)
	c.startLoop(loopAccept, func() { c.acceptLoop(ln) })

	util.LogInfo("listening on %s", c.localAddr)
	return nil
}

// Connect dials host:port and starts the session. See ConnectContext.
func (c *Connection) Connect(host string, port int) error {
	return c.ConnectContext(context.Background(), host, port)
}

// ConnectContext dials host:port, bounded by ctx and the dial timeout. On success the
// CONNECT handshake is the first frame queued, and OnConnect has run by the time it
// returns. On failure the connection is Idle again and may be retried.
func (c *Connection) ConnectContext(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.role = RoleClient
	c.setState(StateConnecting)
	c.mu.Unlock()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	util.LogInfo("connecting to %s", addr)

	conn, err := dial(ctx, addr, c.opts.DialTimeout)

	c.mu.Lock()
	if err != nil {
		if c.state == StateConnecting {
			c.setState(StateIdle)
		}
		c.mu.Unlock()
		return &ConnectError{Addr: addr, Err: err}
	}
	if c.state != StateConnecting {
		// Disconnect won the race with the dial.
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}

	c.handshakeSent.Store(true)
	c.outbox.push(protocol.NewControl(protocol.ControlConnect, protocol.Marker()))
	c.attach(conn)
	c.mu.Unlock()

	c.fireConnect()
	return nil
}

// Disconnect ends the session. It is safe to call from any goroutine, including from
// inside a Handlers callback, and any number of times; it always returns nil. OnDisconnect
// runs once, on the first call that finds the connection active.
func (c *Connection) Disconnect() error {
	c.disconnect(loopNone, nil)
	return nil
}

// disconnect performs the teardown. self names the calling loop so it is not waited on;
// reason is recorded as Err() by the first caller only.
func (c *Connection) disconnect(self loop, reason error) {
	c.mu.Lock()
	prev := c.state
	if !prev.active() {
		c.mu.Unlock()
		return
	}
	c.reason = reason
	c.setState(StateClosed)
	close(c.done)

	conn, ln, log := c.conn, c.listener, c.log
	loops := make(map[loop]chan struct{}, len(c.loops))
	for id, ch := range c.loops {
		loops[id] = ch
	}
	c.mu.Unlock()

	if prev == StateConnected && conn != nil {
		c.writeDirect(conn, protocol.NewControl(protocol.ControlDisconnect, ""))
	}

	if ln != nil {
		_ = ln.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}

	c.join(self, loops, log)

	if n := c.outbox.drain(); n > 0 {
		log.Debug("dropped %d queued messages", n)
	}

	if reason != nil {
		log.Warning("disconnected: %v", reason)
	} else {
		log.Info("disconnected")
	}

	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect()
	}
}

// join waits up to JoinTimeout for every loop except self and any loop that is
// currently inside application code (which may be the caller).
func (c *Connection) join(self loop, loops map[loop]chan struct{}, log util.ConnLogger) {
	skip := uint32(self) | c.inCallback.Load()

	timer := time.NewTimer(c.opts.JoinTimeout)
	defer timer.Stop()

	for id, ch := range loops {
		if uint32(id)&skip != 0 {
			continue
		}
		select {
		case <-ch:
		case <-timer.C:
			log.Debug("%s loop did not stop within %s", id, c.opts.JoinTimeout)
			return
		}
	}
}

// Done is closed when the connection reaches Closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection closed: nil for a local Disconnect or before Closed,
// otherwise the failure that triggered teardown.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Addr returns the bound listener address for a host, the local socket address once
// connected, or nil.
func (c *Connection) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.LocalAddr()
	}
	if c.listener != nil {
		return c.listener.Addr()
	}
	return nil
}

// Statistics returns a snapshot of the counters and addresses.
func (c *Connection) Statistics() Statistics {
	c.mu.Lock()
	st := Statistics{
		Connected:     c.state == StateConnected,
		RemoteAddress: c.remoteAddr,
		LocalAddress:  c.localAddr,
		State:         c.state,
		Role:          c.role,
	}
	c.mu.Unlock()

	st.BytesSent = c.bytesSent.Load()
	st.BytesReceived = c.bytesReceived.Load()
	st.MessagesSent = c.msgsSent.Load()
	st.MessagesReceived = c.msgsReceived.Load()
	st.LastHeartbeat = unixNano(c.lastHeartbeat.Load())
	st.LastPong = unixNano(c.lastPong.Load())
	return st
}

// Traffic adapts the counters for util.StartStatsReporter.
func (c *Connection) Traffic() util.Traffic {
	return util.Traffic{
		BytesSent:        c.bytesSent.Load(),
		BytesReceived:    c.bytesReceived.Load(),
		MessagesSent:     c.msgsSent.Load(),
		MessagesReceived: c.msgsReceived.Load(),
	}
}

// ---------------------------------------------------------------------------
// Internal helpers (c.mu held unless noted)
// ---------------------------------------------------------------------------

func (c *Connection) setState(s State) {
	c.state = s
	c.observer.StateChanged(s)
}

// attach installs an established socket and starts the send and receive loops.
func (c *Connection) attach(conn net.Conn) {
	c.conn = conn
	c.localAddr = conn.LocalAddr().String()
	c.remoteAddr = conn.RemoteAddr().String()
	c.log = util.NewConnLogger(util.ConnTag(conn))

	now := nowNano()
	c.lastHeartbeat.Store(now)
	c.lastPingSent.Store(now)

	c.setState(StateConnected)
	c.startLoop(loopSend, func() { c.sendLoop(conn) })
	c.startLoop(loopRecv, func() { c.recvLoop(conn) })

	c.log.Info("connected %s <-> %s (%s)", c.localAddr, c.remoteAddr, c.role)
}

func (c *Connection) startLoop(id loop, fn func()) {
	ch := make(chan struct{})
	c.loops[id] = ch
	go func() {
		defer close(ch)
		fn()
	}()
}

// isClosed reports whether teardown has begun. Safe without c.mu.
func (c *Connection) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// fireConnect runs OnConnect. Called without c.mu.
func (c *Connection) fireConnect() {
	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}
}

// callback runs application code on behalf of loop id so a Disconnect issued from inside
// it does not wait on that loop. Called without c.mu.
func (c *Connection) callback(id loop, fn func()) {
	c.inCallback.Or(uint32(id))
	defer c.inCallback.And(^uint32(id))
	fn()
}

func nowNano() int64 { return time.Now().UnixNano() }

func unixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
