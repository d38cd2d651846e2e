package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Kind distinguishes the two connection types the server accepts (§6):
// a matchmaking session or a signaling session.
type Kind string

const (
	KindMatch     Kind = "match"
	KindSignaling Kind = "signaling"
)

// Connection represents a single WebSocket client connection with its
// associated metadata and a write mutex for serializing outbound frames.
type Connection struct {
	ID         string    // connection ID (UUID); also keys per-connection subscriptions and timers
	UserID     int64     // authenticated user id, set during upgrade
	Kind       Kind      // match or signaling
	Room       string    // signaling room name; empty for match connections
	Conn       net.Conn  // underlying TCP connection
	Fd         int       // file descriptor for epoll lookups
	CreatedAt  time.Time // when the connection was established
	LastPing   time.Time // last heartbeat received from the client
	writeMu    sync.Mutex // serializes writes to this connection
	processing int32      // atomic flag: 0 = idle, 1 = being read by handleConn
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry that maps connection IDs, file
// descriptors, user ids (for match connections), and room names (for
// signaling connections) to their respective Connection objects.
type ConnectionManager struct {
	mu       sync.RWMutex
	byID     map[string]*Connection            // connection id -> Connection
	byFd     map[int]*Connection               // fd -> Connection
	byUser   map[int64]*Connection             // user id -> Connection, match connections only
	byRoom   map[string]map[string]*Connection // room -> connection id -> Connection, signaling only
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:   make(map[string]*Connection),
		byFd:   make(map[int]*Connection),
		byUser: make(map[int64]*Connection),
		byRoom: make(map[string]map[string]*Connection),
	}
}

// Add registers a new connection in the ID and fd lookup maps, plus the
// user or room index appropriate to its Kind.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.byFd[conn.Fd] = conn
	switch conn.Kind {
	case KindMatch:
		cm.byUser[conn.UserID] = conn
	case KindSignaling:
		room := cm.byRoom[conn.Room]
		if room == nil {
			room = make(map[string]*Connection)
			cm.byRoom[conn.Room] = room
		}
		room[conn.ID] = conn
	}
	cm.mu.Unlock()
}

// Remove removes a connection by connection ID, closes the underlying
// network connection, and removes it from every lookup map. Returns true if
// the connection was found and removed, false if it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		delete(cm.byFd, conn.Fd)
		switch conn.Kind {
		case KindMatch:
			if cm.byUser[conn.UserID] == conn {
				delete(cm.byUser, conn.UserID)
			}
		case KindSignaling:
			if room := cm.byRoom[conn.Room]; room != nil {
				delete(room, conn.ID)
				if len(room) == 0 {
					delete(cm.byRoom, conn.Room)
				}
			}
		}
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// GetByUser returns the match connection for the given user id, or nil.
func (cm *ConnectionManager) GetByUser(userID int64) *Connection {
	cm.mu.RLock()
	conn := cm.byUser[userID]
	cm.mu.RUnlock()
	return conn
}

// RoomMembers returns a snapshot of every signaling connection currently
// joined to room.
func (cm *ConnectionManager) RoomMembers(room string) []*Connection {
	cm.mu.RLock()
	members := cm.byRoom[room]
	conns := make([]*Connection, 0, len(members))
	for _, c := range members {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()
	return conns
}

// RemoveByFd removes a connection by file descriptor, closes the underlying
// network connection, and removes it from every lookup map. It returns the
// removed connection, or nil if no connection was registered for that fd.
func (cm *ConnectionManager) RemoveByFd(fd int) *Connection {
	cm.mu.Lock()
	conn, ok := cm.byFd[fd]
	if ok {
		delete(cm.byFd, fd)
		delete(cm.byID, conn.ID)
		switch conn.Kind {
		case KindMatch:
			if cm.byUser[conn.UserID] == conn {
				delete(cm.byUser, conn.UserID)
			}
		case KindSignaling:
			if room := cm.byRoom[conn.Room]; room != nil {
				delete(room, conn.ID)
				if len(room) == 0 {
					delete(cm.byRoom, conn.Room)
				}
			}
		}
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
		return conn
	}
	return nil
}

// Get returns the connection for the given session ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// GetByFd returns the connection for the given file descriptor, or nil if
// not found.
func (cm *ConnectionManager) GetByFd(fd int) *Connection {
	cm.mu.RLock()
	conn := cm.byFd[fd]
	cm.mu.RUnlock()
	return conn
}

// GetByConn returns the connection for the given net.Conn by extracting
// its file descriptor. Returns nil if not found.
func (cm *ConnectionManager) GetByConn(c net.Conn) *Connection {
	fd := socketFD(c)
	return cm.GetByFd(fd)
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// Broadcast sends a message to all connected clients. Errors on individual
// connections are silently ignored — failed connections will be cleaned up
// by the epoll event loop when the next read fails.
func (cm *ConnectionManager) Broadcast(msg []byte) {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteMessage(msg)
	}
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
