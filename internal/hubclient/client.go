package hubclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iszland/snappy-bridge/internal/bridge"
	"github.com/iszland/snappy-bridge/internal/hub"
	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
)

// defaultDialTimeout is the maximum time for one WebSocket handshake.
const defaultDialTimeout = 10 * time.Second

// State is the connection state of the back-channel.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of a WebSocket connection the client uses.
// Satisfied by *websocket.Conn; substitutable in tests.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc establishes one connection attempt to the hub.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// defaultDial connects with the gorilla dialer.
func defaultDial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Client is the adapters' back-channel to the broadcast hub.
//
// It maintains a persistent WebSocket connection, retried indefinitely
// with a fixed delay, and translates change events into hub publisher
// messages. Publishing while disconnected fails fast with ErrNotConnected;
// the adapters log and drop such events rather than queueing them.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	url        string
	retryDelay time.Duration
	dial       DialFunc
	logger     *logging.Logger

	state atomic.Int32

	connMu  sync.RWMutex
	conn    Conn
	writeMu sync.Mutex

	done *closeOnce
	wg   sync.WaitGroup

	dialsTotal      atomic.Uint64
	reconnectsTotal atomic.Uint64
	eventsPublished atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithDialFunc overrides the connection dialer.
func WithDialFunc(dial DialFunc) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

// New creates a hub client for the given URL. The client does not connect
// until Connect is called.
func New(url string, retryDelay time.Duration, logger *logging.Logger, opts ...Option) *Client {
	c := &Client{
		url:        url,
		retryDelay: retryDelay,
		dial:       defaultDial,
		logger:     logger,
		done:       newCloseOnce(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect launches the connection supervisor. It returns immediately; the
// first connection attempt happens in the background and is retried
// indefinitely until it succeeds or Close is called.
func (c *Client) Connect(ctx context.Context) {
	c.wg.Add(1)
	go c.supervise(ctx)
}

// supervise owns the connection lifecycle: dial, read until failure, wait
// the fixed delay, repeat.
func (c *Client) supervise(ctx context.Context) {
	defer c.wg.Done()
	defer c.state.Store(int32(StateDisconnected))

	connectedBefore := false

	for {
		if c.isClosed() || ctx.Err() != nil {
			return
		}

		c.state.Store(int32(StateConnecting))
		c.dialsTotal.Add(1)

		conn, err := c.dial(ctx, c.url)
		if err != nil {
			c.logger.Warn("hub connect failed", "url", c.url, "error", err)
			if !c.sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		c.setConn(conn)
		c.state.Store(int32(StateConnected))
		if connectedBefore {
			c.reconnectsTotal.Add(1)
		}
		connectedBefore = true
		c.logger.Info("hub connected", "url", c.url)

		c.readLoop(conn)

		c.clearConn()
		c.state.Store(int32(StateConnecting))
		if c.isClosed() || ctx.Err() != nil {
			return
		}

		c.logger.Info("hub connection lost, reconnecting", "delay", c.retryDelay.String())
		if !c.sleep(ctx, c.retryDelay) {
			return
		}
	}
}

// readLoop consumes inbound frames until the connection fails. The hub
// echoes broadcasts back to publishers like any other client; those frames
// are drained and discarded here.
func (c *Client) readLoop(conn Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !c.isClosed() {
				c.logger.Debug("hub read failed", "error", err)
			}
			return
		}
	}
}

// Publish translates a change event into a hub publisher message and sends
// it over the back-channel.
//
// Returns:
//   - error: ErrNotConnected if the back-channel is down, or a write error
func (c *Client) Publish(_ context.Context, event bridge.ChangeEvent) error {
	msg, err := translate(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil || c.State() != StateConnected {
		return ErrNotConnected
	}

	// Gorilla connections allow one concurrent writer.
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	c.eventsPublished.Add(1)
	return nil
}

// translate maps a change event onto the hub's publisher message envelope.
func translate(event bridge.ChangeEvent) (*hub.Message, error) {
	switch event.Kind {
	case bridge.KindGlobalMessage:
		return &hub.Message{Type: hub.TypeGlobalMessage, Payload: event.Payload}, nil

	case bridge.KindServerStatus:
		return &hub.Message{Type: hub.TypeServerStatus, Payload: event.Payload}, nil

	case bridge.KindGroupChanged:
		return &hub.Message{
			Type:    hub.TypeGroupChanged,
			Payload: hub.GroupPayload{Group: event.SourceID},
		}, nil

	case bridge.KindDeviceStatus:
		status, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal status: %w", ErrPublishFailed, err)
		}
		return &hub.Message{
			Type: hub.TypeDeviceStatus,
			Payload: hub.DeviceStatusPayload{
				Source: event.SourceID,
				Status: status,
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrPublishFailed, event.Kind)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// DialsTotal returns the number of connection attempts made.
func (c *Client) DialsTotal() uint64 {
	return c.dialsTotal.Load()
}

// sleep waits for the given duration, returning false if Close was called
// or the context was cancelled.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-c.done.Done():
		return false
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Client) setConn(conn Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Client) clearConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// isClosed returns true if the client has been closed.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close stops the supervisor and closes the connection.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.done.Close()
	c.clearConn()
	c.wg.Wait()
	c.state.Store(int32(StateDisconnected))
	c.logger.Info("hub client closed")
	return nil
}
