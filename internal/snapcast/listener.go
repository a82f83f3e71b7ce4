package snapcast

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iszland/snappy-bridge/internal/infrastructure/config"
)

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

const (
	// defaultDialTimeout is the maximum time for one WebSocket handshake.
	defaultDialTimeout = 10 * time.Second

	// defaultReconnectDelay is the pause between connection attempts.
	defaultReconnectDelay = 1 * time.Second

	// notificationQueueSize is the buffer size for the handler queue.
	notificationQueueSize = 100

	// notificationWorkerCount is the number of concurrent handler workers.
	notificationWorkerCount = 4
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// NotificationHandler processes the params of one notification method.
type NotificationHandler func(params json.RawMessage)

// ListenerStats holds operational statistics.
type ListenerStats struct {
	NotificationsRx      uint64
	NotificationsDropped uint64 // Dropped due to full handler queue
	ErrorsTotal          uint64
	ReconnectsTotal      uint64 // Successful reconnections
	Connected            bool
}

// notification is one queued handler invocation.
type notification struct {
	method string
	params json.RawMessage
}

// Listener maintains a persistent WebSocket connection to the audio
// server's JSON-RPC endpoint and dispatches incoming notifications to
// registered handlers.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Handlers are invoked from a bounded worker pool.
//
// Auto-Reconnection:
//   - The connection is retried indefinitely with a fixed delay, both on
//     initial connect and after any drop. Retrying stops only when Close()
//     is called. Registered handlers survive reconnects.
type Listener struct {
	url            string
	dialTimeout    time.Duration
	reconnectDelay time.Duration
	logger         Logger

	// Connection state
	connMu    sync.RWMutex
	conn      *websocket.Conn
	connected bool

	// Handler table, keyed by notification method. Registration is only
	// allowed before Start.
	handlerMu sync.RWMutex
	handlers  map[string]NotificationHandler

	// Handler worker pool (bounded goroutine spawning)
	queue chan notification

	started atomic.Bool

	// Shutdown coordination
	done *closeOnce
	wg   sync.WaitGroup

	// Statistics (atomic for performance)
	notificationsRx      atomic.Uint64
	notificationsDropped atomic.Uint64
	errorsTotal          atomic.Uint64
	reconnectsTotal      atomic.Uint64
}

// NewListener creates a notification listener for the configured server.
// The listener does not connect until Start is called.
func NewListener(cfg config.SnapserverConfig, logger Logger) *Listener {
	delay := cfg.GetRetryDelay()
	if delay == 0 {
		delay = defaultReconnectDelay
	}

	return &Listener{
		url:            cfg.WebSocketURL(),
		dialTimeout:    defaultDialTimeout,
		reconnectDelay: delay,
		logger:         logger,
		handlers:       make(map[string]NotificationHandler),
		queue:          make(chan notification, notificationQueueSize),
		done:           newCloseOnce(),
	}
}

// RegisterHandler binds a handler to a notification method. Must be called
// before Start; later registrations are ignored with a warning.
func (l *Listener) RegisterHandler(method string, handler NotificationHandler) {
	if l.started.Load() {
		l.logWarn("handler registered after start, ignoring", "method", method)
		return
	}

	l.handlerMu.Lock()
	l.handlers[method] = handler
	l.handlerMu.Unlock()
}

// Start launches the connection supervisor and handler workers.
//
// Returns:
//   - error: ErrAlreadyStarted if Start was already called
func (l *Listener) Start() error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	for i := 0; i < notificationWorkerCount; i++ {
		l.wg.Add(1)
		go l.handlerWorker()
	}

	l.wg.Add(1)
	go l.supervise()

	return nil
}

// supervise owns the connection lifecycle: dial, read until failure,
// wait the fixed delay, repeat.
func (l *Listener) supervise() {
	defer l.wg.Done()

	connectedBefore := false

	for {
		if l.isClosed() {
			return
		}

		conn, err := l.dial()
		if err != nil {
			l.errorsTotal.Add(1)
			l.logError("connect failed", err)
			if !l.sleep(l.reconnectDelay) {
				return
			}
			continue
		}

		l.setConn(conn)
		if connectedBefore {
			l.reconnectsTotal.Add(1)
		}
		connectedBefore = true
		l.logInfo("notification socket connected", "url", l.url)

		l.readLoop(conn)

		l.clearConn()
		if l.isClosed() {
			return
		}

		l.logInfo("notification socket lost, reconnecting", "delay", l.reconnectDelay.String())
		if !l.sleep(l.reconnectDelay) {
			return
		}
	}
}

// dial performs one WebSocket handshake attempt.
func (l *Listener) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: l.dialTimeout}

	conn, resp, err := dialer.Dial(l.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: status %d: %w",
				ErrConnectionFailed, l.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, l.url, err)
	}
	return conn, nil
}

// readLoop reads messages until the connection fails or Close is called.
func (l *Listener) readLoop(conn *websocket.Conn) {
	for {
		if l.isClosed() {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !l.isClosed() {
				l.errorsTotal.Add(1)
				l.logError("read failed", err)
			}
			return
		}

		l.handleMessage(data)
	}
}

// handleMessage decodes one frame and queues it for the worker pool.
// Responses to requests (frames carrying an id) are not expected on this
// socket and are dropped silently.
func (l *Listener) handleMessage(data []byte) {
	var notif rpcNotification
	if err := json.Unmarshal(data, &notif); err != nil {
		l.errorsTotal.Add(1)
		l.logError("decode notification failed", err)
		return
	}
	if notif.Method == "" {
		return
	}

	l.notificationsRx.Add(1)

	l.handlerMu.RLock()
	_, bound := l.handlers[notif.Method]
	l.handlerMu.RUnlock()

	if !bound {
		l.logDebug("no handler for notification", "method", notif.Method)
		return
	}

	select {
	case l.queue <- notification{method: notif.Method, params: notif.Params}:
	default:
		// Queue full, drop to prevent memory exhaustion
		l.logError("handler queue full, dropping notification", nil, "method", notif.Method)
		l.notificationsDropped.Add(1)
		l.errorsTotal.Add(1)
	}
}

// handlerWorker processes notifications from the queue.
// Runs in a bounded worker pool to prevent goroutine explosion.
func (l *Listener) handlerWorker() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done.Done():
			l.drainQueue()
			return
		case n := <-l.queue:
			l.handlerMu.RLock()
			handler := l.handlers[n.method]
			l.handlerMu.RUnlock()

			if handler != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							l.logError("notification handler panic",
								fmt.Errorf("%v", r), "method", n.method)
						}
					}()
					handler(n.params)
				}()
			}
		}
	}
}

// drainQueue discards any remaining queued notifications during shutdown.
func (l *Listener) drainQueue() {
	for {
		select {
		case <-l.queue:
		default:
			return
		}
	}
}

// sleep waits for the given duration, returning false if Close was called.
func (l *Listener) sleep(d time.Duration) bool {
	select {
	case <-l.done.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (l *Listener) setConn(conn *websocket.Conn) {
	l.connMu.Lock()
	l.conn = conn
	l.connected = true
	l.connMu.Unlock()
}

func (l *Listener) clearConn() {
	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connected = false
	l.connMu.Unlock()
}

// IsConnected reports whether the notification socket is currently up.
func (l *Listener) IsConnected() bool {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	return l.connected
}

// Stats returns a snapshot of operational statistics.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		NotificationsRx:      l.notificationsRx.Load(),
		NotificationsDropped: l.notificationsDropped.Load(),
		ErrorsTotal:          l.errorsTotal.Load(),
		ReconnectsTotal:      l.reconnectsTotal.Load(),
		Connected:            l.IsConnected(),
	}
}

// isClosed returns true if the listener has been closed.
func (l *Listener) isClosed() bool {
	select {
	case <-l.done.Done():
		return true
	default:
		return false
	}
}

// Close stops the supervisor and workers and closes the socket.
// Safe to call multiple times.
func (l *Listener) Close() error {
	l.done.Close()
	l.clearConn()
	l.wg.Wait()
	l.logInfo("notification listener closed")
	return nil
}

// logDebug logs a debug message if a logger is set.
func (l *Listener) logDebug(msg string, keysAndValues ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is set.
func (l *Listener) logInfo(msg string, keysAndValues ...any) {
	if l.logger != nil {
		l.logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if a logger is set.
func (l *Listener) logWarn(msg string, keysAndValues ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is set.
func (l *Listener) logError(msg string, err error, keysAndValues ...any) {
	if l.logger == nil {
		return
	}
	if err != nil {
		keysAndValues = append(keysAndValues, "error", err)
	}
	l.logger.Error(msg, keysAndValues...)
}
