package server

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Client is one WebSocket connection. It satisfies directory.Conn: the
// session layer only ever sees the Send/Close pair, never the socket.
type Client struct {
	conn   *websocket.Conn
	gw     *Gateway
	send   chan []byte
	addr   string
	closed bool

	limiter        *tokenBucket
	maxMessageSize int64
}

func newClient(conn *websocket.Conn, gw *Gateway, addr string) *Client {
	conn.SetReadLimit(gw.opts.MaxMessageSize)

	return &Client{
		conn:           conn,
		gw:             gw,
		send:           make(chan []byte, 256),
		addr:           addr,
		limiter:        newTokenBucket(gw.opts.RateLimitBurst, gw.opts.RateLimitInterval),
		maxMessageSize: gw.opts.MaxMessageSize,
	}
}

// Send queues payload for delivery without blocking. It reports false when
// the client is gone or its outbound buffer is full; the relay treats both
// as a dropped best-effort delivery.
func (c *Client) Send(payload []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close tears down the underlying socket. The read pump notices and runs
// the disconnect path, which is a no-op if the session was already detached.
func (c *Client) Close() {
	_ = c.conn.Close()
}

// readPump reads framed messages off the socket and hands them to the
// gateway loop. It owns the unregister on the way out.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.gw.unregister <- c:
		case <-c.gw.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadEnd(err)
			return
		}

		if !c.limiter.allow() {
			c.gw.log.Warn().Str("addr", c.addr).Msg("rate limit exceeded, dropping request")
			continue
		}

		select {
		case c.gw.inbound <- inboundFrame{client: c, payload: payload}:
		case <-c.gw.ctx.Done():
			return
		}
	}
}

func (c *Client) logReadEnd(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.gw.log.Warn().Str("addr", c.addr).Int64("limit", c.maxMessageSize).Msg("oversized message, closing connection")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure),
		errors.Is(err, io.EOF),
		isExpectedCloseError(err):
		c.gw.log.Debug().Str("addr", c.addr).Msg("client disconnected")
	default:
		c.gw.log.Warn().Err(err).Str("addr", c.addr).Msg("read error")
	}
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings. It exits when the send channel closes at unregister.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// isExpectedCloseError reports whether err is ordinary connection-teardown
// noise not worth logging at warning level.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
