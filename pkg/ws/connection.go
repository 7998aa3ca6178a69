package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

type Connectioner interface {
	SendMessage(message []byte) error
	Close() error
}

// Connection wraps one websocket connection. Outbound messages go through a
// bounded queue drained by the write pump; a sender that cannot enqueue
// within writeWait closes the connection instead of backlogging without
// bound.
type Connection struct {
	hub  *Hub
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn) *Connection {
	return &Connection{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *Connection) SendMessage(message []byte) error {
	select {
	case c.send <- message:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	case <-time.After(writeWait):
		_ = c.Close()
		return websocket.ErrCloseSent
	}
}

func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		c.hub.removeConnection(c)
	})
	return nil
}

// CloseWithCode sends a close frame before tearing the connection down. Used
// to reject unauthenticated connections with a policy violation code.
func (c *Connection) CloseWithCode(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		deadline,
	)
	_ = c.Close()
}

func (c *Connection) readPump() {
	defer func() {
		_ = c.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.hub.logger != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).Debug("ws: read error")
			}
			return
		}
		if c.hub.opts.OnMessage != nil {
			c.hub.opts.OnMessage(c, message)
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
