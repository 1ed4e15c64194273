// Package feed implements feed connections over WebSocket.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"FinAlert/internal/domain/models"
	drepo "FinAlert/internal/domain/repository"
	"FinAlert/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	writeWait               = 5 * time.Second
)

// Connector opens WebSocket feed connections.
type Connector struct {
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	logger           *logger.Logger

	nextID atomic.Uint64
}

type ConnectorOption func(*Connector)

// WithHandshakeTimeout bounds the dial and upgrade.
func WithHandshakeTimeout(d time.Duration) ConnectorOption {
	return func(c *Connector) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithPingInterval sets the keepalive ping period. The read deadline is twice that.
func WithPingInterval(d time.Duration) ConnectorOption {
	return func(c *Connector) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

func WithLogger(l *logger.Logger) ConnectorOption {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConnector creates a Connector.
func NewConnector(opts ...ConnectorOption) *Connector {
	c := &Connector{
		handshakeTimeout: defaultHandshakeTimeout,
		pingInterval:     defaultPingInterval,
		logger:           logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dialer = &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: c.handshakeTimeout,
	}
	return c
}

// Open starts a connection attempt and returns immediately in the Opening state.
// The outcome is reported to handler: Opened, then Message frames, and finally
// exactly one Closed.
func (c *Connector) Open(ctx context.Context, url string, handler drepo.FeedHandler) drepo.FeedConnection {
	dialCtx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	conn := &Connection{
		id:         c.nextID.Add(1),
		url:        url,
		handler:    handler,
		connector:  c,
		cancelDial: cancel,
	}
	// Idle until the dial is launched; callers only ever see Opening onwards.
	conn.state = models.ConnOpening
	go conn.run(dialCtx)
	return conn
}

// Connection is one WebSocket connection attempt.
type Connection struct {
	id        uint64
	url       string
	handler   drepo.FeedHandler
	connector *Connector

	mu         sync.Mutex
	state      models.ConnState
	ws         *websocket.Conn
	requested  bool // Close was called
	cancelDial context.CancelFunc
}

func (c *Connection) ID() uint64 { return c.id }

func (c *Connection) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close requests a graceful close. The Closed event follows asynchronously.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == models.ConnClosing || c.state == models.ConnClosed {
		c.mu.Unlock()
		return nil
	}
	c.requested = true
	c.state = models.ConnClosing
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		// still dialing
		c.cancelDial()
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	if err := ws.Close(); err != nil {
		return fmt.Errorf("feed close: %w", err)
	}
	return nil
}

func (c *Connection) run(dialCtx context.Context) {
	log := c.connector.logger
	ws, _, err := c.connector.dialer.DialContext(dialCtx, c.url, nil)
	c.cancelDial()

	c.mu.Lock()
	if err != nil {
		requested := c.requested
		c.state = models.ConnClosed
		c.mu.Unlock()
		c.closed(requested, "handshake failed: "+err.Error(), &models.TransportError{Op: "dial", Err: err})
		return
	}
	if c.requested {
		c.state = models.ConnClosed
		c.mu.Unlock()
		_ = ws.Close()
		c.closed(true, "closed before open", nil)
		return
	}
	c.ws = ws
	c.state = models.ConnOpen
	c.mu.Unlock()

	log.Info("feed connected", logger.String("url", c.url), logger.Uint64("conn_id", c.id))
	c.handler(models.FeedEvent{Type: models.FeedOpened})

	readWait := 2 * c.connector.pingInterval
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})

	stopPing := make(chan struct{})
	go c.pingLoop(ws, stopPing)

	var readErr error
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
		c.handler(models.FeedEvent{Type: models.FeedMessage, Payload: data})
	}
	close(stopPing)
	_ = ws.Close()

	c.mu.Lock()
	requested := c.requested
	c.state = models.ConnClosed
	c.mu.Unlock()

	if requested {
		c.closed(true, "closed by client", nil)
		return
	}
	reason := readErr.Error()
	var ce *websocket.CloseError
	if errors.As(readErr, &ce) {
		reason = fmt.Sprintf("server closed: %d %s", ce.Code, ce.Text)
	}
	log.Warn("feed dropped", logger.String("url", c.url), logger.Uint64("conn_id", c.id), logger.Error(readErr))
	c.closed(false, reason, &models.TransportError{Op: "read", Err: readErr})
}

func (c *Connection) pingLoop(ws *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.connector.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if c.State() != models.ConnOpen {
					return
				}
				c.handler(models.FeedEvent{
					Type:   models.FeedError,
					Reason: "ping failed: " + err.Error(),
					Err:    &models.TransportError{Op: "ping", Err: err},
				})
				// unblock the reader, which reports Closed
				_ = ws.Close()
				return
			}
		}
	}
}

func (c *Connection) closed(requested bool, reason string, err error) {
	cause := models.CloseFault
	if requested {
		cause = models.CloseManual
	}
	c.handler(models.FeedEvent{Type: models.FeedClosed, Reason: reason, Cause: cause, Err: err})
}
