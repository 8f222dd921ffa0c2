package ws

import (
	"sync"
	"sync/atomic"
	"time"
)

// Registry tracks all active connections by identifier. Its single invariant:
// every key maps to a connection that is still open or being torn down.
// Entries are purged synchronously on the disconnect path, never lazily.
type Registry struct {
	connections map[string]*Connection

	totalMsgSent atomic.Int64
	totalMsgRecv atomic.Int64
	startTime    time.Time

	mu sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		startTime:   time.Now(),
	}
}

// Add registers a connection. No two open connections ever share an id, so
// Add never overwrites a live entry.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID()] = conn
}

// Remove unregisters a connection and folds its counters into the lifetime
// totals. Safe to call from the disconnect path even if registration never
// completed, and safe to call twice.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[id]
	if !exists {
		return
	}
	r.totalMsgSent.Add(conn.MessagesSent())
	r.totalMsgRecv.Add(conn.MessagesReceived())
	delete(r.connections, id)
}

// Get returns a connection by id, or nil if the id is stale.
func (r *Registry) Get(id string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connections[id]
}

// SendTo sends a frame to a specific connection. A stale identifier fails
// with ErrConnectionNotFound.
func (r *Registry) SendTo(id string, op Opcode, payload []byte) error {
	r.mu.RLock()
	conn := r.connections[id]
	r.mu.RUnlock()

	if conn == nil {
		return ErrConnectionNotFound
	}
	return conn.Send(op, payload)
}

// Broadcast sends a frame to every open connection and returns the number of
// successful sends.
func (r *Registry) Broadcast(op Opcode, payload []byte) int {
	conns := r.snapshot()

	sent := 0
	for _, conn := range conns {
		if conn.IsClosed() {
			continue
		}
		if err := conn.Send(op, payload); err == nil {
			sent++
		}
	}
	return sent
}

// Count returns the number of active connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// IDs returns the identifiers of all active connections.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	return ids
}

// Infos returns public information for all active connections.
func (r *Registry) Infos() []*ConnectionInfo {
	conns := r.snapshot()

	infos := make([]*ConnectionInfo, 0, len(conns))
	for _, conn := range conns {
		infos = append(infos, conn.Info())
	}
	return infos
}

// CloseAll closes every connection and returns how many close calls
// succeeded. Connections unregister themselves from their own teardown path.
func (r *Registry) CloseAll(code CloseCode, reason string) int {
	conns := r.snapshot()

	closed := 0
	for _, conn := range conns {
		if err := conn.Close(code, reason); err == nil {
			closed++
		}
	}
	return closed
}

// Stats returns aggregate statistics across the registry's lifetime.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sent, recv int64
	for _, conn := range r.connections {
		sent += conn.MessagesSent()
		recv += conn.MessagesReceived()
	}
	sent += r.totalMsgSent.Load()
	recv += r.totalMsgRecv.Load()

	return Stats{
		ActiveConnections:     len(r.connections),
		TotalMessagesSent:     sent,
		TotalMessagesReceived: recv,
		Uptime:                time.Since(r.startTime).String(),
	}
}

// snapshot copies the connection set so callers can iterate without holding
// the registry lock across Send or Close.
func (r *Registry) snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	return conns
}

// Stats represents aggregate WebSocket statistics.
type Stats struct {
	ActiveConnections     int    `json:"activeConnections"`
	TotalMessagesSent     int64  `json:"totalMessagesSent"`
	TotalMessagesReceived int64  `json:"totalMessagesReceived"`
	Uptime                string `json:"uptime"`
}
