package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"FinAlert/internal/domain/models"
	"FinAlert/internal/domain/repository"
	pkgkafka "FinAlert/pkg/kafka"
)

// AlertsSchema returns the DDL for the alerts archive table.
func AlertsSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id String,
	ticker LowCardinality(String),
	price Decimal(18, 6),
	change_percent Decimal(12, 6),
	direction LowCardinality(String),
	observed_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(observed_at)
ORDER BY (ticker, observed_at, id)`, table),
	}
}

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(db *sql.DB, table string) *ClickHouseStorage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	for _, stmt := range AlertsSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

// StoreAlerts inserts alerts with multi-row VALUES, chunked to bound query size.
// The table deduplicates on id, so redelivered Kafka messages are harmless.
func (s *ClickHouseStorage) StoreAlerts(ctx context.Context, alerts []models.Alert) error {
	const chunkSize = 1000
	for start := 0; start < len(alerts); start += chunkSize {
		end := min(start+chunkSize, len(alerts))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, a := range alerts[start:end] {
			if a.ID == "" || a.Ticker == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, a.ID, a.Ticker, a.Price.String(), a.ChangePercent.String(), string(a.Direction), a.ObservedAt.UTC())
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (id, ticker, price, change_percent, direction, observed_at) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert alerts: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // pool owned by pkg/clickhouse.Client
}

// KafkaPublisher implements Publisher for Kafka, one message per alert keyed by ticker.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(alerts))
	for i, a := range alerts {
		msgs[i] = pkgkafka.Message{Key: []byte(a.Ticker), Value: a}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	return nil // producer owned by the app, shared with the log collector
}

var (
	_ repository.Storage   = (*ClickHouseStorage)(nil)
	_ repository.Publisher = (*KafkaPublisher)(nil)
)
