package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"FinAlert/internal/domain/models"
	xlogger "FinAlert/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	pingPeriod   = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBufSize  = 256
	maxReadBytes = 4096
)

// Frame is what subscribers receive.
type Frame struct {
	Type   string                   `json:"type"`
	Status *models.ConnectionStatus `json:"status,omitempty"`
	Alerts []models.Alert           `json:"alerts,omitempty"`
}

// StatusSource reports the current feed status for newly attached subscribers.
type StatusSource interface {
	Status() models.ConnectionStatus
}

// AlertGateway relays status changes and alert emissions to browser
// subscribers. A subscriber whose send buffer fills up is disconnected.
type AlertGateway struct {
	log    *xlogger.Logger
	source StatusSource

	mu      sync.RWMutex
	clients map[string]*clientConn

	upgrader websocket.Upgrader
}

func NewAlertGateway(log *xlogger.Logger, source StatusSource) *AlertGateway {
	return &AlertGateway{
		log:     log.Named("ws"),
		source:  source,
		clients: make(map[string]*clientConn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (g *AlertGateway) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/alerts", g.ServeWS)
}

// ServeWS upgrades the request and blocks until the subscriber goes away.
func (g *AlertGateway) ServeWS(c echo.Context) error {
	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		g.log.Warn("upgrade failed", xlogger.Error(err))
		return nil
	}

	client := &clientConn{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}

	g.mu.Lock()
	g.clients[client.id] = client
	g.mu.Unlock()
	g.log.Debug("subscriber attached", xlogger.String("client", client.id))

	defer func() {
		g.mu.Lock()
		delete(g.clients, client.id)
		g.mu.Unlock()
		client.close()
		g.log.Debug("subscriber detached", xlogger.String("client", client.id))
	}()

	if g.source != nil {
		if b, err := statusFrame(g.source.Status()); err == nil {
			client.trySend(b)
		}
	}

	go client.writePump(g.log)
	client.readPump()
	return nil
}

// BroadcastAlerts is an alerts listener. It never blocks.
func (g *AlertGateway) BroadcastAlerts(batch []models.Alert) {
	b, err := json.Marshal(Frame{Type: "alerts", Alerts: batch})
	if err != nil {
		g.log.Error("encode alerts frame", xlogger.Error(err))
		return
	}
	g.broadcast(b)
}

// BroadcastStatus is a status listener. It never blocks.
func (g *AlertGateway) BroadcastStatus(s models.ConnectionStatus) {
	b, err := statusFrame(s)
	if err != nil {
		g.log.Error("encode status frame", xlogger.Error(err))
		return
	}
	g.broadcast(b)
}

// ClientCount returns the number of attached subscribers.
func (g *AlertGateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Close disconnects every subscriber.
func (g *AlertGateway) Close() {
	for _, c := range g.snapshot() {
		c.close()
	}
}

func (g *AlertGateway) broadcast(data []byte) {
	for _, c := range g.snapshot() {
		if !c.trySend(data) {
			g.log.Warn("slow subscriber dropped", xlogger.String("client", c.id))
			c.close()
		}
	}
}

func (g *AlertGateway) snapshot() []*clientConn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*clientConn, 0, len(g.clients))
	for _, c := range g.clients {
		out = append(out, c)
	}
	return out
}

func statusFrame(s models.ConnectionStatus) ([]byte, error) {
	return json.Marshal(Frame{Type: "status", Status: &s})
}

type clientConn struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// close signals the write pump, which sends a close frame and releases the socket.
func (c *clientConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// trySend reports false when the buffer is full.
func (c *clientConn) trySend(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *clientConn) writePump(log *xlogger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("subscriber write failed", xlogger.String("client", c.id), xlogger.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages and returns when the peer disconnects.
func (c *clientConn) readPump() {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
