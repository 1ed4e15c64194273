package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinAlert/internal/domain/models"
	domrepo "FinAlert/internal/domain/repository"
	pkgkafka "FinAlert/pkg/kafka"
)

// KafkaAlertsHandler consumes published alerts and archives them in storage.
type KafkaAlertsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaAlertsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaAlertsHandler {
	return &KafkaAlertsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaAlertsHandler) Topic() string { return h.topic }

// Handle expects one JSON-encoded models.Alert per message.
func (h *KafkaAlertsHandler) Handle(ctx context.Context, b []byte) error {
	var a models.Alert
	if err := json.Unmarshal(b, &a); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return &pkgkafka.HookError{Code: "ERR_DECODE", Err: err}
	}
	if a.ID == "" || a.Ticker == "" {
		h.metrics.RecordError("consumer_invalid")
		return &pkgkafka.HookError{Code: "ERR_VALIDATION", Err: fmt.Errorf("alert missing id or ticker")}
	}
	// observed -> archived
	h.metrics.RecordLatency("archive_e2e", time.Since(a.ObservedAt).Seconds())

	start := time.Now()
	err := h.storage.StoreAlerts(ctx, []models.Alert{a})
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaAlertsHandler)(nil)
