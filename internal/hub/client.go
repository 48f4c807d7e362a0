package hub

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// client holds per-connection state for one WebSocket client. The reader
// runs single-threaded per §5; outbound frames are serialised through send
// so writes never interleave.
type client struct {
	conn *websocket.Conn
	send chan []byte

	// alive is flipped to false at the start of every heartbeat sweep and
	// back to true on the next pong or heartbeat frame; a client still
	// false at the following sweep is considered dead.
	alive atomic.Bool

	lastHeartbeat atomic.Int64 // unix millis
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 64)}
	c.alive.Store(true)
	c.lastHeartbeat.Store(time.Now().UnixMilli())
	return c
}

func (c *client) markAlive() {
	c.alive.Store(true)
	c.lastHeartbeat.Store(time.Now().UnixMilli())
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// enqueue attempts a non-blocking send; a client whose buffer is full is
// treated as unresponsive and dropped by the caller, matching the teacher's
// broadcast back-pressure policy.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
