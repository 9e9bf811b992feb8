package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var (
	ErrClosed         = errors.New("transport: connection closed")
	ErrSendBufferFull = errors.New("transport: send buffer full")
	ErrOverCapacity   = errors.New("transport: connection limit reached")
)

// callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	ReadTimeout  time.Duration // 0 waits indefinitely for the next frame
	WriteTimeout time.Duration
	PingInterval time.Duration // 0 disables heartbeats
	SendBuffer   int
}

// Connection represents a single, thread-safe WebSocket connection.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	mu        sync.RWMutex
	onMessage MessageHandler
	onClose   OnCloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

// NewConnection wraps an accepted socket. The connection counts against wg
// until Close has run, so every constructed connection must eventually be closed.
func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	if wg != nil {
		wg.Add(1)
	}

	return &Connection{
		id:     id,
		conn:   conn,
		logger: logger.With(slog.String("connID", id.String())),
		config: config,
		send:   make(chan []byte, config.SendBuffer),
		done:   make(chan struct{}),
		ctx:    connCtx,
		cancel: cancel,
		wg:     wg,
	}
}

func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()

	c.logger.Info("connection established")
}

// readPump pumps messages from the WebSocket connection to the message handler.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		typ, message, err := c.read()
		if err != nil {
			readErr = err
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}

		c.mu.RLock()
		handler := c.onMessage
		c.mu.RUnlock()
		if handler != nil {
			handler(c.ctx, c.id, message)
		}
	}
}

func (c *Connection) read() (websocket.MessageType, []byte, error) {
	if c.config.ReadTimeout <= 0 {
		return c.conn.Read(c.ctx)
	}
	readCtx, cancel := context.WithTimeout(c.ctx, c.config.ReadTimeout)
	defer cancel()
	return c.conn.Read(readCtx)
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	var ping <-chan time.Time
	if c.config.PingInterval > 0 {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				writeErr = err
				return
			}
		case <-ping:
			pingCtx, cancel := c.writeContext()
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) write(message []byte) error {
	writeCtx, cancel := c.writeContext()
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, message)
}

func (c *Connection) writeContext() (context.Context, context.CancelFunc) {
	if c.config.WriteTimeout <= 0 {
		return context.WithCancel(c.ctx)
	}
	return context.WithTimeout(c.ctx, c.config.WriteTimeout)
}

// Send queues a frame for the write pump without blocking. It fails when the
// connection is closed or its buffer is full, in which case the caller should
// treat the connection as dead.
func (c *Connection) Send(message []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close gracefully shuts down the connection and its resources. Only the first call has effect.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status := websocket.CloseStatus(err)
		c.logger.Info("Transport connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		c.cancel()

		c.mu.RLock()
		onClose := c.onClose
		c.mu.RUnlock()
		if onClose != nil {
			onClose(c.id, err)
		}
		close(c.done)

		// the close handshake can take seconds, callers fanning out must not wait on it
		go func() {
			if c.conn != nil {
				c.conn.Close(closeCode(err), "")
			}
			if c.wg != nil {
				c.wg.Done()
			}
			c.logger.Info("Connection closed")
		}()
	})
}

func closeCode(err error) websocket.StatusCode {
	if errors.Is(err, ErrSendBufferFull) {
		return websocket.StatusPolicyViolation
	}
	if errors.Is(err, ErrOverCapacity) {
		return websocket.StatusTryAgainLater
	}
	return websocket.StatusNormalClosure
}

// returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.mu.Lock()
	c.onMessage = handler
	c.mu.Unlock()
}

func (c *Connection) SetOnCloseHandler(handler OnCloseHandler) {
	c.mu.Lock()
	c.onClose = handler
	c.mu.Unlock()
}
