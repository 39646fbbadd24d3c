package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const writeWait = 10 * time.Second

// Client is one WebSocket connection and its session state: the
// authenticated user, the joined challenge, the liveness flag and the
// outbound queue.
type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	addr    string
	send    chan []byte
	limiter *rate.Limiter
	logger  *slog.Logger

	mu          sync.Mutex
	userID      int64
	challengeID int64
	alive       bool
	closed      bool
}

// NewClient creates a Client for conn. conn may be nil for connections that
// are driven directly through the hub, which is how the hub tests run.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	id := uuid.NewString()
	c := &Client{
		id:      id,
		conn:    conn,
		hub:     hub,
		addr:    addr,
		send:    make(chan []byte, hub.cfg.SendBuffer),
		limiter: newRateLimiter(hub.rateLimit),
		logger:  hub.logger.With("client_id", id, "remote_addr", addr),
		alive:   true,
	}
	if conn != nil {
		conn.SetReadLimit(hub.maxMessageSize)
	}
	return c
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user, or 0.
func (c *Client) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// ChallengeID returns the joined challenge, or 0.
func (c *Client) ChallengeID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.challengeID
}

// Send exposes the outbound queue for reading.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) setUser(userID int64) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *Client) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// probe clears the liveness flag and reports whether it was set.
func (c *Client) probe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasAlive := c.alive
	c.alive = false
	return wasAlive
}

// enqueue hands msg to the write pump without blocking. It returns false when
// the queue is full or the client has been closed.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue once, which makes the write pump send a
// close frame and exit.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ping writes a WebSocket ping. WriteControl may be called concurrently with
// the write pump.
func (c *Client) ping() {
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Debug("ping failed", "error", err)
		}
	}
}

// closeConnection closes the socket, ignoring errors from a connection that
// is already gone.
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error closing connection", "error", err)
	}
}

// handleReadError logs why the read loop is ending.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("message exceeded maximum size", "max_bytes", c.hub.maxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Info("client disconnected", "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err),
		websocket.IsCloseError(err, websocket.CloseAbnormalClosure):
		c.logger.Info("connection closed", "error", err)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.logger.Warn("unexpected websocket close", "error", err)
	default:
		c.logger.Warn("websocket read error", "error", err)
	}
}

// checkRateLimit reports whether the next frame may be processed. A rejected
// frame is answered with a rate_limited error so the sender knows it was not
// handled.
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Warn("rate limit exceeded; discarding message",
			"burst", c.hub.rateLimit.Burst,
			"refill_interval", c.hub.rateLimit.RefillInterval)
		c.hub.metrics.FrameRateLimited()
		c.hub.replyError(c, "", ErrRateLimited)
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.closeConnection()
	}()

	// The liveness monitor is the only timeout; no read deadline is set.
	c.conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if !c.checkRateLimit() {
			continue
		}
		c.hub.HandleMessage(c, raw)
	}
}

func (c *Client) writePump() {
	defer c.closeConnection()

	for message := range c.send {
		if !c.writeMessage(websocket.TextMessage, message) {
			return
		}
	}
	c.writeMessage(websocket.CloseMessage, []byte{})
}

// writeMessage writes one frame and returns false if the pump should stop.
func (c *Client) writeMessage(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing message", "error", err)
		}
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
