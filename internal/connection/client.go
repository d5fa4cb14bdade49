package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// controlWriteTimeout bounds pong and close control frames.
const controlWriteTimeout = time.Second

// Client is one physical WebSocket connection. A Client is used once:
// after Close or ForceDisconnect a new one must be created.
type Client interface {
	// Connect dials and upgrades the connection and starts reading.
	Connect(ctx context.Context) error

	// Close sends a normal-closure frame and closes. It never reports on Errors.
	Close() error

	// ForceDisconnect reports reason on Errors and then closes, driving the
	// owner's unplanned-close path.
	ForceDisconnect(reason error) error

	// Send writes one text frame.
	Send(data []byte) error

	// Messages delivers every inbound text frame in arrival order.
	Messages() <-chan TimestampedMessage

	// Errors delivers at most one error: the read failure or the
	// ForceDisconnect reason.
	Errors() <-chan error

	// Done is closed once the client has been closed.
	Done() <-chan struct{}

	IsConnected() bool

	// LastMessageAt is when the last inbound frame of any kind arrived,
	// control frames included.
	LastMessageAt() time.Time
}

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	lastMessageAt atomic.Int64 // UnixNano
}

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultClientConfig()
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w (handshake status %d)", err, resp.StatusCode)
		}
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.touch(time.Now())

	conn.SetPingHandler(func(data string) error {
		c.touch(time.Now())
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteTimeout))
	})
	conn.SetPongHandler(func(string) error {
		c.touch(time.Now())
		return nil
	})

	go c.readLoop(conn)

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

func (c *client) Close() error {
	conn, ok := c.shutdown(nil)
	if !ok || conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(controlWriteTimeout),
	)
	c.writeMu.Unlock()

	return conn.Close()
}

func (c *client) ForceDisconnect(reason error) error {
	if reason == nil {
		reason = ErrForcedDisconnect
	}
	conn, ok := c.shutdown(reason)
	if !ok || conn == nil {
		return nil
	}
	return conn.Close()
}

// shutdown marks the client closed exactly once. A non-nil reason is queued
// on Errors before Done closes, so a reader selecting on both sees it.
func (c *client) shutdown(reason error) (*websocket.Conn, bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, false
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	if reason != nil {
		c.report(reason)
	}
	close(c.done)
	return conn, true
}

func (c *client) Send(data []byte) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Messages() <-chan TimestampedMessage { return c.messages }

func (c *client) Errors() <-chan error { return c.errors }

func (c *client) Done() <-chan struct{} { return c.done }

func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) LastMessageAt() time.Time {
	ns := c.lastMessageAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (c *client) touch(at time.Time) {
	c.lastMessageAt.Store(at.UnixNano())
}

func (c *client) report(err error) {
	select {
	case c.errors <- err:
	default:
	}
}

// readLoop forwards frames in order. It blocks rather than drop when the
// consumer falls behind.
func (c *client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-c.done:
				// Closed by us; not a failure.
			default:
				c.report(err)
			}
			return
		}

		c.touch(receivedAt)

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		}
	}
}
