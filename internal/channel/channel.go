package channel

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	defaultReconnectInterval = 3 * time.Second
	writeTimeout             = 5 * time.Second
)

// Options configures a Client. The connection target and reconnect tuning
// come from external configuration, never from the coordination logic.
type Options struct {
	URL string

	// ReconnectInterval is the fixed delay between reconnect attempts.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts bounds consecutive failed reconnects. 0 means
	// unlimited.
	MaxReconnectAttempts int
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Client is a managed, auto-reconnecting websocket channel carrying
// order-status, price and transaction notifications. It is a handle owned by
// the composition root; create one per application (or per test).
type Client struct {
	opts   Options
	logger *log.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	subs      map[string]json.RawMessage

	handlerMu sync.Mutex
	handlers  map[MessageType][]handlerEntry
	nextID    uint64
}

func NewClient(opts Options, logger *log.Logger) *Client {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = defaultReconnectInterval
	}

	return &Client{
		opts:     opts,
		logger:   logger,
		subs:     make(map[string]json.RawMessage),
		handlers: make(map[MessageType][]handlerEntry),
	}
}

// Connect dials the channel and starts the receive loop. A failed initial
// dial is returned to the caller; reconnection only applies to connections
// that drop after being established.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.opts.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.closed = false
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Disconnect closes the channel cleanly. No reconnect is attempted.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.closed = true
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}

// Connected reports whether the channel currently has a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes a frame best-effort. It returns false when the channel is not
// connected or the write fails; outbound messages are never queued.
func (c *Client) Send(msgType MessageType, payload any) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return false
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Printf("failed to marshal outbound %s payload: %v", msgType, err)
		return false
	}

	return c.write(conn, Envelope{
		ID:      uuid.NewString(),
		Type:    msgType,
		Payload: raw,
	})
}

// Subscribe registers interest in a server-side channel. The subscription is
// tracked locally and reissued automatically after every reconnect.
func (c *Client) Subscribe(name string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[name] = raw
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if connected && conn != nil {
		c.write(conn, Envelope{ID: uuid.NewString(), Type: msgSubscribe, Channel: name, Payload: raw})
	}
	return nil
}

// Unsubscribe drops a tracked subscription.
func (c *Client) Unsubscribe(name string) {
	c.mu.Lock()
	delete(c.subs, name)
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if connected && conn != nil {
		c.write(conn, Envelope{ID: uuid.NewString(), Type: msgUnsubscribe, Channel: name})
	}
}

// On registers a handler for a message type (or Wildcard for all types) and
// returns a function that removes it.
func (c *Client) On(msgType MessageType, fn Handler) func() {
	c.handlerMu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[msgType] = append(c.handlers[msgType], handlerEntry{id: id, fn: fn})
	c.handlerMu.Unlock()

	return func() { c.off(msgType, id) }
}

func (c *Client) off(msgType MessageType, id uint64) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()

	entries := c.handlers[msgType]
	for i, entry := range entries {
		if entry.id == id {
			c.handlers[msgType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.onConnClosed(err)
			return
		}
		c.dispatch(data)
	}
}

// onConnClosed runs after a connection has fully closed. A clean disconnect
// stays down; anything else enters the reconnect loop.
func (c *Client) onConnClosed(err error) {
	c.mu.Lock()
	closed := c.closed
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	if closed {
		return
	}

	c.logger.Printf("channel connection lost (status %d): %v", websocket.CloseStatus(err), err)
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	attempts := 0
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		attempts++
		if c.opts.MaxReconnectAttempts > 0 && attempts > c.opts.MaxReconnectAttempts {
			c.logger.Printf("channel reconnect gave up after %d attempts; live updates unavailable", c.opts.MaxReconnectAttempts)
			return
		}

		time.Sleep(c.opts.ReconnectInterval)

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		conn, _, err := websocket.Dial(ctx, c.opts.URL, nil)
		cancel()
		if err != nil {
			c.logger.Printf("channel reconnect attempt %d failed: %v", attempts, err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "client disconnect")
			return
		}
		c.conn = conn
		c.connected = true
		subs := make(map[string]json.RawMessage, len(c.subs))
		for name, params := range c.subs {
			subs[name] = params
		}
		c.mu.Unlock()

		c.logger.Printf("channel reconnected after %d attempt(s)", attempts)

		for name, params := range subs {
			c.write(conn, Envelope{ID: uuid.NewString(), Type: msgSubscribe, Channel: name, Payload: params})
		}

		go c.readLoop(conn)
		return
	}
}

// dispatch parses an inbound frame and invokes matching handlers. Malformed
// frames are dropped and logged; nothing may panic out of the receive path.
func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		c.logger.Printf("dropping malformed channel frame: %q", data)
		return
	}

	msg := Message{Type: env.Type, Channel: env.Channel, Payload: env.Payload}
	if _, known := knownTypes[env.Type]; !known {
		msg.Type = MsgUnknown
		msg.Payload = json.RawMessage(data)
	}

	c.handlerMu.Lock()
	entries := append([]handlerEntry(nil), c.handlers[msg.Type]...)
	entries = append(entries, c.handlers[Wildcard]...)
	c.handlerMu.Unlock()

	for _, entry := range entries {
		entry.fn(msg)
	}
}

func (c *Client) write(conn *websocket.Conn, env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Printf("failed to marshal %s frame: %v", env.Type, err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.logger.Printf("failed to write %s frame: %v", env.Type, err)
		return false
	}
	return true
}
