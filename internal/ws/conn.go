package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// socket is the narrow surface the registry and broker need from a
// websocket connection. *websocket.Conn satisfies it; tests substitute
// in-memory fakes.
type socket interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one live, authenticated realtime connection. A user may hold
// several at once (multi-device).
type Client struct {
	ConnID      string
	UserID      int
	AccountType string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time

	mu   sync.Mutex
	sock socket
}

// NewClient wraps a socket into a Client.
func NewClient(connID string, userID int, accountType string, sock socket) *Client {
	return &Client{
		ConnID:      connID,
		UserID:      userID,
		AccountType: accountType,
		ConnectedAt: time.Now(),
		sock:        sock,
	}
}

// Send writes one event frame. Writes are serialized per connection since
// the underlying websocket does not support concurrent writers.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteJSON(v)
}

// Close closes the underlying socket.
func (c *Client) Close() error {
	return c.sock.Close()
}

// newConnID returns an opaque identifier for one live connection.
func newConnID() string {
	return uuid.NewString()
}
