package middleware

import (
	"time"

	"FinAlert/internal/domain/models"
	domrepo "FinAlert/internal/domain/repository"
	"FinAlert/pkg/clock"
)

// DefaultWindow is the minimum spacing between two emissions.
const DefaultWindow = time.Second

// EmitFunc receives one coalesced, non-empty batch in arrival order.
type EmitFunc func(batch []models.Alert)

// AlertThrottle coalesces submitted alerts so that at most one batch is emitted
// per window. Nothing is dropped: every submitted alert is emitted exactly once.
//
// It is not safe for concurrent use. Submit, Pause, Resume and the timer
// callbacks must be serialized by the owner, typically by handing it a clock
// whose callbacks run on the owner's goroutine.
type AlertThrottle struct {
	emit    EmitFunc
	clock   clock.Clock
	window  time.Duration
	metrics domrepo.Metrics

	pending []models.Alert
	timer   clock.Timer
	seq     uint64 // invalidates fires of cancelled timers
	paused  bool
}

type ThrottleOption func(*AlertThrottle)

// WithWindow sets the emission window.
func WithWindow(d time.Duration) ThrottleOption {
	return func(t *AlertThrottle) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithClock sets the clock used for window timers.
func WithClock(c clock.Clock) ThrottleOption {
	return func(t *AlertThrottle) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithThrottleMetrics records emission sizes and queue latency.
func WithThrottleMetrics(m domrepo.Metrics) ThrottleOption {
	return func(t *AlertThrottle) { t.metrics = m }
}

// NewAlertThrottle creates a throttle delivering batches to emit.
func NewAlertThrottle(emit EmitFunc, opts ...ThrottleOption) *AlertThrottle {
	t := &AlertThrottle{
		emit:   emit,
		clock:  clock.New(),
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit queues batch. The first alert queued after an emission arms the window.
func (t *AlertThrottle) Submit(batch []models.Alert) {
	if len(batch) == 0 {
		return
	}
	t.pending = append(t.pending, batch...)
	t.arm()
}

// Pause cancels the window timer and keeps the queue.
func (t *AlertThrottle) Pause() {
	t.paused = true
	t.cancel()
}

// Resume re-arms the window if alerts are queued.
func (t *AlertThrottle) Resume() {
	t.paused = false
	t.arm()
}

// Pending returns the number of queued alerts.
func (t *AlertThrottle) Pending() int { return len(t.pending) }

func (t *AlertThrottle) Window() time.Duration { return t.window }

func (t *AlertThrottle) arm() {
	if t.paused || t.timer != nil || len(t.pending) == 0 {
		return
	}
	t.seq++
	seq := t.seq
	t.timer = t.clock.AfterFunc(t.window, func() { t.fire(seq) })
}

func (t *AlertThrottle) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
}

func (t *AlertThrottle) fire(seq uint64) {
	if seq != t.seq || t.timer == nil {
		return
	}
	t.timer = nil
	if t.paused || len(t.pending) == 0 {
		return
	}
	batch := t.pending
	t.pending = nil
	if t.metrics != nil {
		t.metrics.RecordAlertsEmitted(len(batch))
		t.metrics.RecordLatency("throttle_queue", t.clock.Now().Sub(batch[0].ObservedAt).Seconds())
	}
	t.emit(batch)
}
