// Package hub fans live session events out to websocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/livecoach/internal/domain"
)

// Connection represents a single websocket subscriber of one user.
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	mu     sync.Mutex

	// closed is set under Hub.mu when the hub closes Send.
	closed bool
}

// Hub tracks connections and delivers events to every connection of a user.
type Hub struct {
	connections map[string]*Connection
	users       map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *userMessage
	done       chan struct{}

	mu sync.RWMutex
}

type userMessage struct {
	UserID string
	Data   []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		users:       make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *userMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled and closes
// every remaining connection's Send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, conn := range h.connections {
			conn.closed = true
			close(conn.Send)
			delete(h.connections, id)
		}
		h.users = make(map[string]map[string]bool)
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.users[conn.UserID] == nil {
				h.users[conn.UserID] = make(map[string]bool)
			}
			h.users[conn.UserID][conn.ID] = true
			h.mu.Unlock()
			log.Printf("Connection registered: %s (user: %s)", conn.ID, conn.UserID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if ids := h.users[conn.UserID]; ids != nil {
					delete(ids, conn.ID)
					if len(ids) == 0 {
						delete(h.users, conn.UserID)
					}
				}
				conn.closed = true
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Printf("Connection unregistered: %s", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.users[msg.UserID] {
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.Data:
				default:
					log.Printf("WARN: connection %s buffer full, closing", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a connection for userID. It is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn, userID string) *Connection {
	return &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   ws,
		Send:   make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues data for every connection of userID. The message is
// dropped when the queue is full so publishers never block.
func (h *Hub) Broadcast(userID string, data []byte) {
	select {
	case h.broadcast <- &userMessage{UserID: userID, Data: data}:
	case <-h.done:
	default:
		log.Printf("WARN: hub queue full, dropping event for user %s", userID)
	}
}

// BroadcastJSON sends a JSON message to all connections of userID.
func (h *Hub) BroadcastJSON(userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(userID, data)
	return nil
}

// SendJSONToConnection sends a JSON message to a specific connection. It
// is a no-op once the hub closed the connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn.closed {
		return nil
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasActiveConnections reports whether userID has any registered connection.
func (h *Hub) HasActiveConnections(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Publisher returns a publisher that delivers live events to userID.
func (h *Hub) Publisher(userID string) *UserPublisher {
	return &UserPublisher{hub: h, userID: userID}
}

// UserPublisher delivers live events of one user's sessions.
type UserPublisher struct {
	hub    *Hub
	userID string
}

// Publish encodes ev and broadcasts it.
func (p *UserPublisher) Publish(ev domain.LiveEvent) {
	if err := p.hub.BroadcastJSON(p.userID, ev); err != nil {
		log.Printf("WARN: failed to encode %s event for session %s: %v", ev.Type, ev.SessionID, err)
	}
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
