// Package wsconn provides a production-grade WebSocket client with reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/quantor/triarb/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// MessageHandler is called for every inbound message. It runs on the
// client's read goroutine; slow handlers delay subsequent reads.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler is called on every state transition. The error is
// non-nil for transitions caused by a failure.
type StateHandler func(state State, err error)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // connection label used in errors
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64 // 0 = library default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0, // infinite
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
	}
}

// Client is a WebSocket client with automatic reconnection. Sends are
// safe for concurrent use; handlers are registered before Connect.
type Client struct {
	config Config

	mu        sync.RWMutex
	state     State
	conn      *websocket.Conn
	onMessage MessageHandler
	onState   StateHandler

	writeMu   sync.Mutex
	lifeCtx   context.Context
	lifeStop  context.CancelFunc
	closeOnce sync.Once
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithContext("empty URL"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:   config,
		state:    StateDisconnected,
		lifeCtx:  ctx,
		lifeStop: cancel,
	}, nil
}

// OnMessage registers the inbound message handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	c.onMessage = h
	c.mu.Unlock()
}

// OnStateChange registers the state transition handler.
func (c *Client) OnStateChange(h StateHandler) {
	c.mu.Lock()
	c.onState = h
	c.mu.Unlock()
}

// Connect establishes the WebSocket connection and starts the read and
// ping loops. Reconnection after a later drop is automatic.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting, nil)

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return apperror.External(apperror.CodeWebSocketConnectionError, c.config.Name, err)
	}

	c.setState(StateConnected, nil)
	go c.readLoop()
	if c.config.PingInterval > 0 {
		go c.pingLoop()
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		return err
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Send sends a raw message through the WebSocket.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(c.config.Name))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.External(apperror.CodeWebSocketSendError, c.config.Name, err)
	}
	return nil
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidFormat, c.config.Name)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is currently established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close gracefully closes the WebSocket connection. It is idempotent;
// after Close the client stays in StateClosed and never reconnects.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.lifeStop()

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "client closing")
		}
		c.setState(StateClosed, nil)
	})
	return nil
}

// readLoop pumps inbound messages into the handler until the
// connection drops, then hands off to the reconnect loop.
func (c *Client) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		handler := c.onMessage
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(c.lifeCtx)
		if err != nil {
			if c.closed() {
				return
			}
			c.reconnect(err)
			return
		}

		if handler != nil {
			handler(c.lifeCtx, data)
		}
	}
}

// pingLoop keeps the connection alive. A failed ping is left for the
// read loop to observe as a connection error.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.lifeCtx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			connected := c.state == StateConnected
			c.mu.RUnlock()
			if conn == nil || !connected {
				return
			}

			ctx, cancel := context.WithTimeout(c.lifeCtx, c.config.PongTimeout)
			_ = conn.Ping(ctx)
			cancel()
		}
	}
}

// reconnect retries the dial with exponential backoff until it
// succeeds, the retry budget runs out, or the client is closed.
func (c *Client) reconnect(cause error) {
	c.setState(StateReconnecting, cause)

	backoff := c.config.InitialBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-c.lifeCtx.Done():
			return
		case <-time.After(backoff):
		}

		err := c.dial(c.lifeCtx)
		if err == nil {
			c.setState(StateConnected, nil)
			go c.readLoop()
			return
		}
		if c.closed() {
			return
		}

		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			c.setState(StateDisconnected, err)
			return
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.lifeCtx.Done():
		return true
	default:
		return false
	}
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed && state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	handler := c.onState
	c.mu.Unlock()

	if handler != nil {
		handler(state, err)
	}
}
