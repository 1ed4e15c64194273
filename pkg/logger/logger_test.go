package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
	got     chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	select {
	case p.got <- struct{}{}:
	default:
	}
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{got: make(chan struct{}, 1)}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Source:         "finalert",
		Publisher:      pub,
	})
	for i := 0; i < 3; i++ {
		c.AddLog("error", "publish failed", map[string]interface{}{"topic": "alerts"}, "x.go:1")
	}
	c.AddLog("error", "store failed", nil, "y.go:2")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "logs" || len(pub.batches) != 1 {
		t.Fatalf("expected one batch on logs, got %d on %q", len(pub.batches), pub.topic)
	}
	b := pub.batches[0]
	if b.Source != "finalert" || len(b.Entries) != 2 {
		t.Fatalf("unexpected batch %+v", b)
	}
	for _, e := range b.Entries {
		if e.Message == "publish failed" && e.Count != 3 {
			t.Fatalf("expected count 3, got %d", e.Count)
		}
	}
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{got: make(chan struct{}, 1)}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()
	c.AddLog("error", "a", nil, "a.go:1")
	c.AddLog("error", "b", nil, "b.go:1")
	select {
	case <-pub.got:
	case <-time.After(2 * time.Second):
		t.Fatalf("threshold flush did not publish")
	}
}

func TestLoggerWithCollector(t *testing.T) {
	l, err := New(&Config{Level: "debug", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	pub := &capturePublisher{got: make(chan struct{}, 1)}
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub, IncludeWarnings: true})
	named := l.Named("test")
	named.Error("boom", Error(errors.New("x")), String("ticker", "AAPL"))
	named.Warn("slow", Duration("elapsed", time.Second))
	named.Info("ignored", Int("count", 1))
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || len(pub.batches[0].Entries) != 2 {
		t.Fatalf("expected error and warn entries, got %+v", pub.batches)
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
	NewNop().Error("discarded", Error(nil))
}

func TestNamedChildSharesLaterCollector(t *testing.T) {
	root := NewNop()
	child := root.Named("feed")

	pub := &capturePublisher{got: make(chan struct{}, 1)}
	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	child.Error("dial failed", Error(errors.New("refused")))
	child.Warn("not collected")
	root.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || len(pub.batches[0].Entries) != 1 {
		t.Fatalf("expected the child's error in one batch, got %+v", pub.batches)
	}
	if pub.batches[0].Entries[0].Message != "dial failed" {
		t.Fatalf("unexpected entry %+v", pub.batches[0].Entries[0])
	}

	child.Error("after removal")
}
