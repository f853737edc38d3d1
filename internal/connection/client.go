package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atria-live/presence/internal/queue"
)

// Client is a single WebSocket transport to the gateway. The Supervisor
// creates a fresh Client per connection attempt and never reuses one.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn   *websocket.Conn
	frames *queue.Growable[Frame]

	// Write serialization
	writeMu sync.Mutex

	mu        sync.Mutex
	connected bool
	closed    bool
	readErr   error // first terminal read error; nil after a local Close
}

// NewClient creates a gateway transport. Connect must be called before use.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		frames: queue.NewGrowable[Frame](cfg.BufferSize),
	}
}

// Connect dials the gateway with the credential headers and subscribed
// event set, then starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	target, err := streamURL(c.cfg.GatewayURL, c.cfg.Events)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("room-id", c.cfg.RoomID)
	header.Set("api-token", c.cfg.APIToken)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()

	c.logger.Debug("gateway transport open", "url", c.cfg.GatewayURL, "room_id", c.cfg.RoomID)

	return nil
}

// Close tears the transport down. Safe to call more than once; queued
// frames remain readable until drained.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	c.frames.Close()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}

	return nil
}

// Send writes one text frame to the gateway.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// NextFrame blocks until an inbound frame is available. It returns false
// once the transport is down and all queued frames have been drained.
func (c *Client) NextFrame() (Frame, bool) {
	return c.frames.Pop()
}

// Err returns the terminal read error, or nil if the transport was closed
// locally. Meaningful only after NextFrame has returned false.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// IsConnected reports transport readiness.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// QueueStats returns counters for the inbound frame queue.
func (c *Client) QueueStats() queue.Stats {
	return c.frames.Stats()
}

// readLoop pulls frames off the socket into the frame queue until the
// transport dies. The queue preserves arrival order and never drops.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			c.mu.Lock()
			if !c.closed && c.readErr == nil {
				c.readErr = err
			}
			c.connected = false
			c.mu.Unlock()

			c.frames.Close()
			return
		}

		c.frames.Push(Frame{Data: data, ReceivedAt: receivedAt})
	}
}

// streamURL appends the comma-joined event subscription list to the
// gateway URL.
func streamURL(gatewayURL string, events []string) (string, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}

	q := u.Query()
	q.Set("events", strings.Join(events, ","))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
