package ws

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// State is the per-connection frame cycle state. The cycle is stateless
// across messages: after every successful echo the connection returns to
// StateIdle, and the only memory carried forward is the open/closed status.
type State int32

const (
	// StateIdle means no frame is in flight.
	StateIdle State = iota
	// StateReceiving means a probe + payload read is in progress.
	StateReceiving
	// StateEchoing means the echo send is in progress.
	StateEchoing
	// StateClosed is terminal, reachable from any state.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateEchoing:
		return "echoing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection represents one accepted transport link promoted to WebSocket
// framing. It is owned exclusively by the server runtime: created on a
// successful handshake, destroyed on disconnect or transport error.
type Connection struct {
	id          string
	conn        net.Conn
	codec       *Codec
	remoteAddr  string
	connectedAt time.Time

	lastMessageAt atomic.Value // time.Time
	messagesSent  atomic.Int64
	messagesRecv  atomic.Int64
	state         atomic.Int32
	closed        atomic.Bool

	closeMu sync.Mutex
}

// NewConnection wraps a hijacked connection. br carries bytes buffered during
// the handshake; maxPayload bounds the declared length accepted by the codec.
func NewConnection(conn net.Conn, br *bufio.Reader, maxPayload int64) *Connection {
	c := &Connection{
		id:          GenerateConnectionID(),
		conn:        conn,
		codec:       NewCodec(br, conn, maxPayload),
		remoteAddr:  conn.RemoteAddr().String(),
		connectedAt: time.Now(),
	}
	c.lastMessageAt.Store(c.connectedAt)
	return c
}

// ID returns the connection's opaque identifier, stable for its lifetime.
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr returns the peer address captured at handshake time.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// ConnectedAt returns the connection establishment time.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// LastMessageAt returns the time of the last frame activity.
func (c *Connection) LastMessageAt() time.Time {
	v := c.lastMessageAt.Load()
	t, ok := v.(time.Time)
	if !ok {
		return c.connectedAt
	}
	return t
}

// MessagesSent returns the total data frames echoed back.
func (c *Connection) MessagesSent() int64 {
	return c.messagesSent.Load()
}

// MessagesReceived returns the total data frames received.
func (c *Connection) MessagesReceived() int64 {
	return c.messagesRecv.Load()
}

// State returns the current frame cycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
}

// IsClosed returns whether the connection is closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Send writes one data frame to the peer. The write is atomic at the frame
// level: either the full frame is transmitted or the send fails as a whole.
func (c *Connection) Send(op Opcode, payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := c.codec.WriteFrame(op, payload); err != nil {
		return err
	}
	c.messagesSent.Add(1)
	c.lastMessageAt.Store(time.Now())
	return nil
}

// noteReceived updates counters after a successful decode.
func (c *Connection) noteReceived() {
	c.messagesRecv.Add(1)
	c.lastMessageAt.Store(time.Now())
}

// Close sends a close frame with the given code and reason (best effort) and
// tears down the transport. It is safe to call from any goroutine and at any
// point in the frame cycle; closing aborts an in-flight receive or send on
// this connection without affecting any other.
func (c *Connection) Close(code CloseCode, reason string) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}
	c.setState(StateClosed)

	// The peer may already be gone; the close frame is advisory.
	_ = c.codec.WriteClose(code, reason)
	return c.conn.Close()
}

// CloseNormal closes the connection with a normal closure code.
func (c *Connection) CloseNormal() error {
	return c.Close(CloseNormalClosure, "")
}

// Info returns public information about this connection.
func (c *Connection) Info() *ConnectionInfo {
	return &ConnectionInfo{
		ID:               c.id,
		RemoteAddr:       c.remoteAddr,
		State:            c.State().String(),
		ConnectedAt:      c.connectedAt,
		LastMessageAt:    c.LastMessageAt(),
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesRecv.Load(),
	}
}

// ConnectionInfo represents public information about a connection, as
// surfaced by the control API.
type ConnectionInfo struct {
	ID               string    `json:"id"`
	RemoteAddr       string    `json:"remoteAddr"`
	State            string    `json:"state"`
	ConnectedAt      time.Time `json:"connectedAt"`
	LastMessageAt    time.Time `json:"lastMessageAt"`
	MessagesSent     int64     `json:"messagesSent"`
	MessagesReceived int64     `json:"messagesReceived"`
}
