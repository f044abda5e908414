package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// conn wraps a socket with a single writer fed by a buffered channel.
// Reads happen on the goroutine serving the upgrade request.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, buffer int) *conn {
	return &conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Send queues a frame without blocking. It returns false if the
// connection is closed or its buffer is full.
func (c *conn) Send(data []byte) bool {
	return c.enqueue(data) == nil
}

func (c *conn) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// closeWith starts the closing handshake. The read loop ends when the peer answers.
func (c *conn) closeWith(code int, reason string, timeout time.Duration) error {
	msg := websocket.FormatCloseMessage(code, reason)
	return c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
}

// terminate stops the writer and closes the socket
func (c *conn) terminate() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
