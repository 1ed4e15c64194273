package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"FinAlert/internal/domain/models"
	"FinAlert/internal/service/history"
	pkgkafka "FinAlert/pkg/kafka"
	"FinAlert/pkg/logger"
	"FinAlert/pkg/metrics"

	"github.com/shopspring/decimal"
)

type memSink struct {
	mu        sync.Mutex
	published [][]models.Alert
	stored    [][]models.Alert
	fail      error
	saved     chan []models.Alert
	snapshot  []models.Alert
}

func (m *memSink) PublishAlerts(_ context.Context, a []models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.published = append(m.published, a)
	return nil
}

func (m *memSink) StoreAlerts(_ context.Context, a []models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.stored = append(m.stored, a)
	return nil
}

func (m *memSink) Init(context.Context) error   { return nil }
func (m *memSink) Health(context.Context) error { return nil }
func (m *memSink) Close() error                 { return nil }

func (m *memSink) Save(_ context.Context, s []models.Alert) error {
	m.saved <- s
	return nil
}

func (m *memSink) Load(context.Context) ([]models.Alert, error) { return m.snapshot, m.fail }

func (m *memSink) Clear(context.Context) error {
	m.snapshot = nil
	return nil
}

func sampleAlert(id, ticker string) models.Alert {
	return models.Alert{
		ID:            id,
		Ticker:        ticker,
		Price:         decimal.RequireFromString("10.5"),
		ChangePercent: decimal.RequireFromString("3"),
		ObservedAt:    time.Now().UTC(),
		Direction:     models.DirectionIncrease,
	}
}

func TestArchiverRoutesByBackend(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{}
	batch := []models.Alert{sampleAlert("1", "AAPL")}

	kafka := NewAlertArchiver(sink, sink, metrics.Nop{}, logger.NewNop(), BackendKafka, 0)
	if err := kafka.Archive(ctx, batch); err != nil {
		t.Fatalf("kafka archive: %v", err)
	}
	ch := NewAlertArchiver(sink, sink, metrics.Nop{}, logger.NewNop(), BackendClickHouse, 0)
	if err := ch.Archive(ctx, batch); err != nil {
		t.Fatalf("clickhouse archive: %v", err)
	}
	if len(sink.published) != 1 || len(sink.stored) != 1 {
		t.Fatalf("published=%d stored=%d", len(sink.published), len(sink.stored))
	}
	if err := NewAlertArchiver(nil, nil, metrics.Nop{}, logger.NewNop(), BackendNone, 0).Archive(ctx, batch); err != nil {
		t.Fatalf("none backend: %v", err)
	}
	if err := NewAlertArchiver(nil, nil, metrics.Nop{}, logger.NewNop(), "s3", 0).Archive(ctx, batch); err == nil {
		t.Fatalf("expected unknown backend error")
	}

	sink.fail = errors.New("broker down")
	if err := kafka.Archive(ctx, batch); !errors.Is(err, sink.fail) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
}

func TestArchiverListenerDrainsOnStop(t *testing.T) {
	sink := &memSink{}
	a := NewAlertArchiver(sink, sink, metrics.Nop{}, logger.NewNop(), BackendClickHouse, 8)
	a.Start(context.Background())
	l := a.Listener()
	l([]models.Alert{sampleAlert("1", "A")})
	l([]models.Alert{sampleAlert("2", "B"), sampleAlert("3", "C")})
	a.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	total := 0
	for _, b := range sink.stored {
		total += len(b)
	}
	if total != 3 {
		t.Fatalf("stored %d alerts want 3", total)
	}
}

func TestArchiverStopIsIdempotent(t *testing.T) {
	sink := &memSink{}
	a := NewAlertArchiver(sink, sink, metrics.Nop{}, logger.NewNop(), BackendClickHouse, 8)
	a.Start(context.Background())
	a.Listener()([]models.Alert{sampleAlert("1", "A")})
	a.Stop()
	a.Stop()

	// restarting a stopped archiver must not relaunch the writer or reopen stop
	a.Start(context.Background())
	a.Stop()

	idle := NewAlertArchiver(sink, sink, metrics.Nop{}, logger.NewNop(), BackendKafka, 8)
	idle.Stop()
	idle.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.stored) != 1 {
		t.Fatalf("stored batches=%d want 1", len(sink.stored))
	}
}

func TestKafkaAlertsHandler(t *testing.T) {
	sink := &memSink{}
	h := NewKafkaAlertsHandler("finalert.alerts", sink, metrics.Nop{})
	if h.Topic() != "finalert.alerts" {
		t.Fatalf("topic=%s", h.Topic())
	}
	b, _ := json.Marshal(sampleAlert("42", "NVDA"))
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.stored) != 1 || sink.stored[0][0].ID != "42" || !sink.stored[0][0].Price.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("stored=%+v", sink.stored)
	}

	var he *pkgkafka.HookError
	if err := h.Handle(context.Background(), []byte("{")); !errors.As(err, &he) || he.Code != "ERR_DECODE" {
		t.Fatalf("expected decode error, got %v", err)
	}
	if err := h.Handle(context.Background(), []byte(`{"ticker":"X"}`)); !errors.As(err, &he) || he.Code != "ERR_VALIDATION" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHistorySyncRestoreAndSave(t *testing.T) {
	sink := &memSink{saved: make(chan []models.Alert, 4), snapshot: []models.Alert{sampleAlert("b", "B"), sampleAlert("a", "A")}}
	h := history.New(5)
	s := NewHistorySync(sink, h, metrics.Nop{}, logger.NewNop())
	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if snap := h.Snapshot(); len(snap) != 2 || snap[0].ID != "b" {
		t.Fatalf("restored=%+v", snap)
	}

	s.Start(context.Background())
	h.Record(sampleAlert("c", "C"))
	s.Listener()([]models.Alert{sampleAlert("c", "C")})
	select {
	case saved := <-sink.saved:
		if len(saved) != 3 || saved[0].ID != "c" {
			t.Fatalf("saved=%+v", saved)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("history not saved")
	}
	s.Stop()

	if err := s.Clear(context.Background()); err != nil || sink.snapshot != nil {
		t.Fatalf("clear failed: %v", err)
	}
}

// gatedStore blocks the first Save until release is closed.
type gatedStore struct {
	entered chan struct{}
	release chan struct{}
	done    chan []models.Alert

	mu      sync.Mutex
	current []models.Alert
}

func (g *gatedStore) Save(_ context.Context, snap []models.Alert) error {
	g.entered <- struct{}{}
	<-g.release
	g.mu.Lock()
	g.current = snap
	g.mu.Unlock()
	g.done <- snap
	return nil
}

func (g *gatedStore) Load(context.Context) ([]models.Alert, error) { return nil, nil }

func (g *gatedStore) Clear(context.Context) error {
	g.mu.Lock()
	g.current = nil
	g.mu.Unlock()
	return nil
}

func TestHistorySyncClearOverridesInFlightSave(t *testing.T) {
	store := &gatedStore{entered: make(chan struct{}, 8), release: make(chan struct{}), done: make(chan []models.Alert, 8)}
	h := history.New(5)
	h.Record(sampleAlert("a", "A"))
	s := NewHistorySync(store, h, metrics.Nop{}, logger.NewNop())
	s.Start(context.Background())
	defer s.Stop()

	s.Touch()
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("save never started")
	}

	h.Clear()
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	close(store.release)

	var saves [][]models.Alert
	for len(saves) < 2 {
		select {
		case snap := <-store.done:
			saves = append(saves, snap)
		case <-time.After(2 * time.Second):
			t.Fatalf("no save after clear, saves=%+v", saves)
		}
	}
	if len(saves[0]) != 1 || len(saves[1]) != 0 {
		t.Fatalf("saves=%+v", saves)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.current) != 0 {
		t.Fatalf("stale snapshot persisted after clear: %+v", store.current)
	}
}
