package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/irisvoice/go-iris/pkg/protocol"
)

// warnThrottle rate-limits repeated warnings to one per second per
// cause, so a dead connection cannot flood the logs.
type warnThrottle struct {
	mu   sync.Mutex
	last map[string]time.Time
	min  time.Duration
}

func newWarnThrottle(min time.Duration) *warnThrottle {
	if min <= 0 {
		min = time.Second
	}
	return &warnThrottle{last: make(map[string]time.Time), min: min}
}

// Allow reports whether a warning for this cause may be emitted now.
func (t *warnThrottle) Allow(cause string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.last[cause]; ok && now.Sub(last) < t.min {
		return false
	}
	t.last[cause] = now
	return true
}

// wsConn adapts a websocket connection to session.Conn. A single
// mutex serializes writers; sends after close are dropped with a
// throttled warning, never surfaced as errors.
type wsConn struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	closed   bool
	throttle *warnThrottle
	logger   *slog.Logger
}

func newWSConn(conn *websocket.Conn, logger *slog.Logger) *wsConn {
	return &wsConn{
		conn:     conn,
		throttle: newWarnThrottle(time.Second),
		logger:   logger,
	}
}

// Send implements session.Conn.
func (c *wsConn) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.drop("send_after_close", msg)
		return nil
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The connection just proved dead. Later sends drop quietly.
		c.closed = true
		c.drop("write_failed", msg)
		return nil
	}
	return nil
}

// markClosed stops further writes. Called from the read loop on
// disconnect.
func (c *wsConn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// drop records a dropped outbound message. Caller holds the mutex.
func (c *wsConn) drop(cause string, msg *protocol.Message) {
	if c.throttle.Allow(cause) {
		c.logger.Warn("dropped outbound message", "cause", cause, "type", msg.Type)
	}
}
