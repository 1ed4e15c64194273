package usecase

import (
	"context"
	"sync"
	"time"

	"FinAlert/internal/domain/models"
	domrepo "FinAlert/internal/domain/repository"
	"FinAlert/internal/service/history"
	"FinAlert/pkg/logger"
)

// HistorySync mirrors the in-memory history into a HistoryStore so it survives
// restarts. Saves are coalesced: a burst of emissions results in one write.
type HistorySync struct {
	store   domrepo.HistoryStore
	history *history.History
	metrics domrepo.Metrics
	logger  *logger.Logger
	timeout time.Duration

	dirty chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewHistorySync(store domrepo.HistoryStore, h *history.History, metrics domrepo.Metrics, log *logger.Logger) *HistorySync {
	return &HistorySync{
		store:   store,
		history: h,
		metrics: metrics,
		logger:  log,
		timeout: 5 * time.Second,
		dirty:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Restore seeds the history from the store.
func (s *HistorySync) Restore(ctx context.Context) error {
	snapshot, err := s.store.Load(ctx)
	if err != nil {
		s.metrics.RecordError("history_load")
		return err
	}
	s.history.Restore(snapshot)
	s.logger.Info("history restored", logger.Int("alerts", s.history.Len()))
	return nil
}

// Listener marks the history dirty after each emission.
func (s *HistorySync) Listener() AlertsListener {
	return func([]models.Alert) { s.Touch() }
}

// Touch schedules a save.
func (s *HistorySync) Touch() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Clear removes the persisted snapshot and schedules a save of the current
// (cleared) history, so a save already in flight cannot resurrect old alerts.
func (s *HistorySync) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.Touch()
	return nil
}

// Start launches the background saver.
func (s *HistorySync) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stop:
				s.save(ctx)
				return
			case <-ctx.Done():
				return
			case <-s.dirty:
				s.save(ctx)
			}
		}
	}()
}

func (s *HistorySync) save(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.store.Save(sctx, s.history.Snapshot()); err != nil {
		s.metrics.RecordError("history_save")
		s.logger.Warn("history save failed", logger.Error(err))
	}
}

// Stop writes a final snapshot and waits for the saver.
func (s *HistorySync) Stop() {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}
