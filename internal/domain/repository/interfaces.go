package repository

import (
	"context"

	"FinAlert/internal/domain/models"
)

// FeedHandler receives transport events for one connection.
// It may be called from transport goroutines and must not block for long.
type FeedHandler func(ev models.FeedEvent)

// FeedConnector opens feed connections. Open never blocks on the network:
// the handshake outcome is reported through the handler.
type FeedConnector interface {
	Open(ctx context.Context, url string, handler FeedHandler) FeedConnection
}

// FeedConnection is a single connection attempt.
type FeedConnection interface {
	ID() uint64
	State() models.ConnState
	Close() error
}

// Publisher ships emitted alerts to a message bus.
type Publisher interface {
	PublishAlerts(ctx context.Context, alerts []models.Alert) error
	Close() error
}

// Storage archives alerts.
type Storage interface {
	Init(ctx context.Context) error // ensure tables
	StoreAlerts(ctx context.Context, alerts []models.Alert) error
	Health(ctx context.Context) error // ping
	Close() error
}

// HistoryStore persists the history snapshot across restarts.
type HistoryStore interface {
	Save(ctx context.Context, snapshot []models.Alert) error
	Load(ctx context.Context) ([]models.Alert, error)
	Clear(ctx context.Context) error
}

type Metrics interface {
	RecordAlertsReceived(n int)
	RecordAlertsEmitted(n int)
	RecordError(kind string)
	RecordStatus(status models.ConnectionStatus)
	RecordReconnect()
	RecordLastPrice(ticker string, price float64)
	RecordLatency(op string, seconds float64)
}
