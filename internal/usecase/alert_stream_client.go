package usecase

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"FinAlert/internal/domain/models"
	drepo "FinAlert/internal/domain/repository"
	mid "FinAlert/internal/middleware"
	"FinAlert/internal/service/history"
	"FinAlert/internal/service/reconnect"
	"FinAlert/pkg/clock"
	"FinAlert/pkg/logger"
	"FinAlert/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultFeedURL is the feed endpoint used when none is configured.
const DefaultFeedURL = "ws://127.0.0.1:8000/ws"

// StatusListener observes connection status changes.
type StatusListener func(status models.ConnectionStatus)

// AlertsListener receives throttled, non-empty alert batches in arrival order.
type AlertsListener func(batch []models.Alert)

// AlertStreamClient keeps a live feed connection while enabled, decodes alert
// batches into history and delivers them to subscribers through a throttle.
//
// All state is owned by a single event-loop goroutine. Public methods post to
// the loop and wait, so Disable returning means no further status or alert
// events are delivered until the next Enable. Listeners run on the loop: they
// must not block and must not call Enable or Disable synchronously.
type AlertStreamClient struct {
	url            string
	connector      drepo.FeedConnector
	policy         reconnect.Policy
	history        *history.History
	throttle       *mid.AlertThrottle
	throttleWindow time.Duration
	metrics        drepo.Metrics
	logger         *logger.Logger
	clock          clock.Clock
	loopClock      clock.Clock
	validate       *validator.Validate

	ctx       context.Context
	cancel    context.CancelFunc
	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once

	// loop-owned
	enabled        bool
	status         models.ConnectionStatus
	conn           drepo.FeedConnection
	attempt        uint64
	reconnectTimer clock.Timer
	reconnectSeq   uint64

	lmu             sync.RWMutex
	nextListenerID  int
	statusListeners []statusEntry
	alertListeners  []alertsEntry
}

type statusEntry struct {
	id int
	fn StatusListener
}

type alertsEntry struct {
	id int
	fn AlertsListener
}

type ClientOption func(*AlertStreamClient)

func WithReconnectPolicy(p reconnect.Policy) ClientOption {
	return func(c *AlertStreamClient) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithHistory shares an existing history buffer.
func WithHistory(h *history.History) ClientOption {
	return func(c *AlertStreamClient) {
		if h != nil {
			c.history = h
		}
	}
}

func WithThrottleWindow(d time.Duration) ClientOption {
	return func(c *AlertStreamClient) { c.throttleWindow = d }
}

// WithClientClock replaces the clock used for timers and observed_at.
func WithClientClock(cl clock.Clock) ClientOption {
	return func(c *AlertStreamClient) {
		if cl != nil {
			c.clock = cl
		}
	}
}

func WithClientMetrics(m drepo.Metrics) ClientOption {
	return func(c *AlertStreamClient) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithClientLogger(l *logger.Logger) ClientOption {
	return func(c *AlertStreamClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewAlertStreamClient creates a disabled client and starts its event loop.
// Call Close to release it.
func NewAlertStreamClient(feedURL string, connector drepo.FeedConnector, opts ...ClientOption) *AlertStreamClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &AlertStreamClient{
		url:            feedURL,
		connector:      connector,
		policy:         reconnect.NewFixed(reconnect.DefaultDelay),
		history:        history.New(history.DefaultCapacity),
		throttleWindow: mid.DefaultWindow,
		metrics:        metrics.Nop{},
		logger:         logger.NewNop(),
		clock:          clock.New(),
		validate:       validator.New(),
		ctx:            ctx,
		cancel:         cancel,
		inbox:          make(chan func(), 256),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loopClock = loopClock{Clock: c.clock, post: c.post}
	c.throttle = mid.NewAlertThrottle(c.deliverAlerts,
		mid.WithWindow(c.throttleWindow),
		mid.WithClock(c.loopClock),
		mid.WithThrottleMetrics(c.metrics),
	)
	go c.loop()
	return c
}

// ValidateEndpoint checks that raw is an absolute ws or wss URL with a host.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &models.ConfigurationError{Field: "feed.url", Value: raw, Err: fmt.Errorf("%w: %v", models.ErrInvalidEndpoint, err)}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return &models.ConfigurationError{Field: "feed.url", Value: raw, Err: fmt.Errorf("%w: scheme must be ws or wss", models.ErrInvalidEndpoint)}
	}
	if u.Host == "" {
		return &models.ConfigurationError{Field: "feed.url", Value: raw, Err: fmt.Errorf("%w: missing host", models.ErrInvalidEndpoint)}
	}
	return nil
}

// Enable starts streaming. It is a no-op when already enabled. A malformed
// endpoint is reported as a *models.ConfigurationError and leaves the client
// disabled.
func (c *AlertStreamClient) Enable() error {
	if err := ValidateEndpoint(c.url); err != nil {
		c.metrics.RecordError("config")
		return err
	}
	if !c.call(c.enable) {
		return models.ErrClientClosed
	}
	return nil
}

// Disable closes the connection and cancels any pending reconnect. History is kept.
func (c *AlertStreamClient) Disable() {
	c.call(c.disable)
}

// Status returns the current connection status.
func (c *AlertStreamClient) Status() models.ConnectionStatus {
	var s models.ConnectionStatus
	c.call(func() { s = c.status })
	return s
}

func (c *AlertStreamClient) Enabled() bool {
	var e bool
	c.call(func() { e = c.enabled })
	return e
}

// History returns the retained alerts, most recent first.
func (c *AlertStreamClient) History() []models.Alert { return c.history.Snapshot() }

func (c *AlertStreamClient) ClearHistory() { c.history.Clear() }

// URL returns the configured feed endpoint.
func (c *AlertStreamClient) URL() string { return c.url }

// OnStatusChange registers l and returns a func removing it.
func (c *AlertStreamClient) OnStatusChange(l StatusListener) (unsubscribe func()) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextListenerID++
	id := c.nextListenerID
	c.statusListeners = append(c.statusListeners, statusEntry{id: id, fn: l})
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, e := range c.statusListeners {
			if e.id == id {
				c.statusListeners = append(c.statusListeners[:i:i], c.statusListeners[i+1:]...)
				return
			}
		}
	}
}

// OnAlerts registers l and returns a func removing it.
func (c *AlertStreamClient) OnAlerts(l AlertsListener) (unsubscribe func()) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextListenerID++
	id := c.nextListenerID
	c.alertListeners = append(c.alertListeners, alertsEntry{id: id, fn: l})
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, e := range c.alertListeners {
			if e.id == id {
				c.alertListeners = append(c.alertListeners[:i:i], c.alertListeners[i+1:]...)
				return
			}
		}
	}
}

// Close disables the client and stops its event loop.
func (c *AlertStreamClient) Close() error {
	c.closeOnce.Do(func() {
		c.call(c.disable)
		c.cancel()
		close(c.done)
	})
	return nil
}

// --- event loop ---

func (c *AlertStreamClient) loop() {
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.done:
			return
		}
	}
}

func (c *AlertStreamClient) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.inbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *AlertStreamClient) call(fn func()) bool {
	ack := make(chan struct{})
	if !c.post(func() { fn(); close(ack) }) {
		return false
	}
	select {
	case <-ack:
		return true
	case <-c.done:
		return false
	}
}

func (c *AlertStreamClient) enable() {
	if c.enabled {
		return
	}
	c.enabled = true
	c.policy.Reset()
	c.throttle.Resume()
	c.logger.Info("alert stream enabled", logger.String("url", c.url))
	c.connect()
}

func (c *AlertStreamClient) disable() {
	c.enabled = false
	c.cancelReconnect()
	c.throttle.Pause()
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		if err := conn.Close(); err != nil {
			c.logger.Warn("feed close failed", logger.Error(err))
		}
		c.logger.Info("alert stream disabled", logger.Uint64("conn_id", conn.ID()))
	}
	c.setStatus(models.StatusDisconnected)
}

func (c *AlertStreamClient) connect() {
	c.cancelReconnect()
	if c.conn != nil {
		old := c.conn
		c.conn = nil
		_ = old.Close()
	}
	c.attempt++
	attempt := c.attempt
	c.setStatus(models.StatusConnecting)
	c.conn = c.connector.Open(c.ctx, c.url, func(ev models.FeedEvent) {
		c.post(func() { c.handleFeedEvent(attempt, ev) })
	})
}

func (c *AlertStreamClient) handleFeedEvent(attempt uint64, ev models.FeedEvent) {
	if attempt != c.attempt || c.conn == nil {
		return
	}
	switch ev.Type {
	case models.FeedOpened:
		c.policy.Reset()
		c.setStatus(models.StatusConnected)
	case models.FeedMessage:
		c.ingest(ev.Payload)
	case models.FeedError, models.FeedClosed:
		conn := c.conn
		c.conn = nil
		if ev.Type == models.FeedError {
			_ = conn.Close()
		}
		c.metrics.RecordError("transport")
		c.logger.Warn("feed connection lost",
			logger.String("event", ev.Type.String()),
			logger.String("reason", ev.Reason),
			logger.Uint64("conn_id", conn.ID()),
		)
		c.setStatus(models.StatusDisconnected)
		if c.enabled {
			c.scheduleReconnect(ev)
		}
	}
}

func (c *AlertStreamClient) scheduleReconnect(ev models.FeedEvent) {
	cause := ev.Cause
	if ev.Type == models.FeedError {
		cause = models.CloseFault
	}
	delay, ok := c.policy.OnClosed(cause, ev.Reason)
	if !ok {
		return
	}
	c.cancelReconnect()
	seq := c.reconnectSeq
	c.reconnectTimer = c.loopClock.AfterFunc(delay, func() {
		if seq != c.reconnectSeq || !c.enabled {
			return
		}
		c.reconnectTimer = nil
		c.metrics.RecordReconnect()
		c.logger.Info("reconnecting feed", logger.Duration("after_ms", delay))
		c.connect()
	})
}

func (c *AlertStreamClient) cancelReconnect() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectSeq++
}

func (c *AlertStreamClient) ingest(raw []byte) {
	start := time.Now()
	decoded, err := decodeBatch(c.validate, raw)
	if err != nil {
		c.metrics.RecordError("decode_frame")
		c.logger.Warn("dropping feed frame", logger.Error(err))
		return
	}
	if decoded.Ignored {
		c.logger.Debug("ignoring feed frame", logger.String("type", decoded.Type))
		return
	}
	for _, skipErr := range decoded.Skipped {
		c.metrics.RecordError("decode_entry")
		c.logger.Warn("skipping alert entry", logger.Error(skipErr))
	}
	if len(decoded.Alerts) == 0 {
		return
	}

	now := c.clock.Now()
	batch := make([]models.Alert, 0, len(decoded.Alerts))
	for _, m := range decoded.Alerts {
		a := models.NewAlert(uuid.NewString(), m, now)
		c.history.Record(a)
		batch = append(batch, a)
		c.metrics.RecordLastPrice(a.Ticker, a.Price.InexactFloat64())
	}
	c.metrics.RecordAlertsReceived(len(batch))
	c.throttle.Submit(batch)
	c.metrics.RecordLatency("ingest", time.Since(start).Seconds())
}

func (c *AlertStreamClient) setStatus(s models.ConnectionStatus) {
	if c.status == s {
		return
	}
	c.status = s
	c.metrics.RecordStatus(s)
	c.lmu.RLock()
	listeners := make([]statusEntry, len(c.statusListeners))
	copy(listeners, c.statusListeners)
	c.lmu.RUnlock()
	for _, l := range listeners {
		c.safeCall("status", func() { l.fn(s) })
	}
}

func (c *AlertStreamClient) deliverAlerts(batch []models.Alert) {
	c.lmu.RLock()
	listeners := make([]alertsEntry, len(c.alertListeners))
	copy(listeners, c.alertListeners)
	c.lmu.RUnlock()
	for _, l := range listeners {
		out := make([]models.Alert, len(batch))
		copy(out, batch)
		c.safeCall("alerts", func() { l.fn(out) })
	}
}

func (c *AlertStreamClient) safeCall(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordError("listener_panic")
			c.logger.Error("listener panicked", logger.String("listener", kind), logger.Any("panic", r))
		}
	}()
	fn()
}

// loopClock runs timer callbacks on the client's event loop.
type loopClock struct {
	clock.Clock
	post func(func()) bool
}

func (l loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return l.Clock.AfterFunc(d, func() { l.post(f) })
}
