package gateway

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PGateway/logger"
)

// Sink is the outbound half of a connection's transport. Push must not
// block; implementations drop frames for slow consumers.
type Sink interface {
	Push(payload []byte) bool
	Close()
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Client wraps one websocket session: a buffered send queue consumed by
// a single writer goroutine, ping-based liveness, and idempotent close.
type Client struct {
	ConnID string
	UserID string
	WS     *websocket.Conn
	Remote net.Addr

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	c := &Client{
		ConnID: connID,
		UserID: userID,
		WS:     ws,
		Remote: ws.RemoteAddr(),
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
	return c
}

// Push enqueues a frame for the writer goroutine. Returns false when the
// queue is full or the client is closed; the frame is dropped either way.
func (c *Client) Push(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		logger.Warnf("[client] send queue full, dropping frame user=%s conn=%s", c.UserID, c.ConnID)
		return false
	}
}

// Close shuts the writer down and closes the socket. Safe to call from
// multiple goroutines and multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.WS.Close()
	})
}

// WritePump drains the send queue onto the socket and keeps the
// connection alive with pings. Run it once per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[client] write error user=%s conn=%s err=%v", c.UserID, c.ConnID, err)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
