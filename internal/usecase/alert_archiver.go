package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinAlert/internal/domain/models"
	drepo "FinAlert/internal/domain/repository"
	"FinAlert/pkg/logger"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// AlertArchiver routes emitted batches to the configured backend off the
// client's event loop. Sink failures are logged and counted only.
type AlertArchiver struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	logger  *logger.Logger
	backend string
	timeout time.Duration

	queue   chan []models.Alert
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
}

// NewAlertArchiver creates an archiver for backend (kafka, clickhouse or none).
func NewAlertArchiver(pub drepo.Publisher, store drepo.Storage, metrics drepo.Metrics, log *logger.Logger, backend string, queueSize int) *AlertArchiver {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &AlertArchiver{
		pub:     pub,
		store:   store,
		metrics: metrics,
		logger:  log,
		backend: backend,
		timeout: 10 * time.Second,
		queue:   make(chan []models.Alert, queueSize),
		stop:    make(chan struct{}),
	}
}

func (a *AlertArchiver) Backend() string { return a.backend }

// Archive writes one batch synchronously.
func (a *AlertArchiver) Archive(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	start := time.Now()
	var err error

	switch a.backend {
	case BackendKafka:
		err = a.pub.PublishAlerts(ctx, alerts)
	case BackendClickHouse:
		err = a.store.StoreAlerts(ctx, alerts)
	case BackendNone, "":
		return nil
	default:
		err = fmt.Errorf("unknown backend: %s", a.backend)
	}

	if err != nil {
		a.metrics.RecordError("archive_" + a.backend)
		return fmt.Errorf("archive alerts: %w", err)
	}
	a.metrics.RecordLatency("archive_"+a.backend, time.Since(start).Seconds())
	return nil
}

// Listener enqueues emissions without blocking. A full queue drops the batch
// from the archive only; subscribers and history are unaffected.
func (a *AlertArchiver) Listener() AlertsListener {
	return func(batch []models.Alert) {
		if a.backend == BackendNone || a.backend == "" {
			return
		}
		select {
		case a.queue <- batch:
		default:
			a.metrics.RecordError("archive_queue_full")
			a.logger.Warn("archive queue full, dropping batch", logger.Int("alerts", len(batch)))
		}
	}
}

// Start launches the background writer.
func (a *AlertArchiver) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true
	a.wg.Add(1)
	go a.run(ctx)
}

func (a *AlertArchiver) run(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			a.drain(ctx)
			return
		case <-ctx.Done():
			return
		case batch := <-a.queue:
			a.write(ctx, batch)
		}
	}
}

func (a *AlertArchiver) drain(ctx context.Context) {
	for {
		select {
		case batch := <-a.queue:
			a.write(ctx, batch)
		default:
			return
		}
	}
}

func (a *AlertArchiver) write(ctx context.Context, batch []models.Alert) {
	wctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.Archive(wctx, batch); err != nil {
		a.logger.Error("archive failed", logger.String("backend", a.backend), logger.Int("alerts", len(batch)), logger.Error(err))
	}
}

// Stop flushes queued batches and waits for the writer. A stopped archiver
// cannot be restarted; repeated calls are no-ops.
func (a *AlertArchiver) Stop() {
	a.mu.Lock()
	a.started = true // blocks a later Start
	a.mu.Unlock()
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
}
