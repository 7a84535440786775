package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	sendBufSize = 128
)

var ErrClientClosed = errors.New("client closed")

// Client wraps a websocket connection and serializes outbound writes through
// a buffered channel. It is the connection handle the presence registry keys
// on; handle identity is pointer identity.
type Client struct {
	ID   string
	Info ConnInfo

	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Info: info,
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

// Start launches the write loop. Call exactly once per client.
func (c *Client) Start() {
	go c.writeLoop()
}

// Send enqueues a payload for delivery. Enqueue order is write order, so
// events reach the peer in the order they were handed to the client. A full
// buffer means the reader is not keeping up; the connection is closed rather
// than letting the backlog grow.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.Close(websocket.ClosePolicyViolation, "send buffer overflow")
		return ErrClientClosed
	}
}

// Close shuts the client down, attempting a close frame with the given code.
// Safe to call multiple times.
func (c *Client) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// Done reports client shutdown; used by the read loop to stop on eviction.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}
