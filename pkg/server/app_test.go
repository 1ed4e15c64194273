package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"FinAlert/internal/domain/models"
	drepo "FinAlert/internal/domain/repository"
	"FinAlert/internal/usecase"
	"FinAlert/pkg/config"
	applogger "FinAlert/pkg/logger"
)

type stubConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *stubConn) ID() uint64 { return 1 }

func (c *stubConn) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return models.ConnClosed
	}
	return models.ConnOpening
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type stubConnector struct {
	mu    sync.Mutex
	opens []*stubConn
}

func (s *stubConnector) Open(_ context.Context, _ string, _ drepo.FeedHandler) drepo.FeedConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &stubConn{}
	s.opens = append(s.opens, c)
	return c
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() error { c.n++; return nil }

func TestAppLifecycle(t *testing.T) {
	cfg, err := config.Parse([]byte("environment: test\nfeed:\n  auto_enable: true\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	conn := &stubConnector{}
	client := usecase.NewAlertStreamClient(cfg.Feed.URL, conn)
	closer := &countingCloser{}

	app := New(Components{
		Config:  cfg,
		Logger:  applogger.NewNop(),
		Client:  client,
		Closers: []io.Closer{closer},
	})

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if client.Status() != models.StatusConnecting || !client.Enabled() {
		t.Fatalf("auto enable did not run: %s", client.Status())
	}
	if len(conn.opens) != 1 {
		t.Fatalf("expected one open, got %d", len(conn.opens))
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !conn.opens[0].closed {
		t.Fatalf("connection not closed on shutdown")
	}
	if closer.n != 1 {
		t.Fatalf("closers called %d times", closer.n)
	}
	if err := client.Enable(); !errors.Is(err, models.ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed after shutdown, got %v", err)
	}
}
