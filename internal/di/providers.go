package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"FinAlert/internal/domain/repository"
	"FinAlert/internal/handler/api"
	"FinAlert/internal/handler/ws"
	internalrepo "FinAlert/internal/repository"
	"FinAlert/internal/service/feed"
	"FinAlert/internal/service/history"
	"FinAlert/internal/service/reconnect"
	"FinAlert/internal/usecase"
	"FinAlert/pkg/cache"
	pkgch "FinAlert/pkg/clickhouse"
	"FinAlert/pkg/config"
	xhttp "FinAlert/pkg/http"
	"FinAlert/pkg/http/middleware"
	pkgkafka "FinAlert/pkg/kafka"
	applogger "FinAlert/pkg/logger"
	"FinAlert/pkg/metrics"
	"FinAlert/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
)

const serviceName = "finalert"

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry creates the registry for application metrics. /metrics
// serves it together with the default registry, which holds the runtime and
// Kafka client collectors.
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegisterer(reg)
}

// ProvideKafkaProducer creates a Kafka producer when alerts or logs are
// published, and attaches the log collector to it.
func ProvideKafkaProducer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.NeedsKafkaProducer() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Log.Collector.Enabled {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:    cfg.Log.Collector.Interval,
			CountThreshold:  cfg.Log.Collector.Threshold,
			Topic:           cfg.Log.Collector.Topic,
			Source:          serviceName,
			IncludeWarnings: cfg.Log.Collector.IncludeWarnings,
			Publisher:       producer,
		})
	}
	return producer, nil
}

// ProvideClickHouseClient connects to ClickHouse and creates the alerts table.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.NeedsClickHouse() {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.AlertsSchema(cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideAlertStorage returns nil when ClickHouse is not used.
func ProvideAlertStorage(ch *pkgch.Client, cfg *config.Config) repository.Storage {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseStorage(ch.DB(), cfg.ClickHouse.Table)
}

// ProvideAlertPublisher returns nil unless alerts are archived through Kafka.
func ProvideAlertPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil || cfg.Backend.Type != usecase.BackendKafka {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideCache creates the cache backing the persisted history.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.History.Store != "redis" {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(16)), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 1, 3*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideHistoryStore(c cache.Service, cfg *config.Config) repository.HistoryStore {
	return internalrepo.NewCacheHistoryStore(c, cfg.History.Key, cfg.History.TTL)
}

func ProvideHistory(cfg *config.Config) *history.History {
	return history.New(cfg.History.Capacity)
}

func ProvideReconnectPolicy(cfg *config.Config) (reconnect.Policy, error) {
	return reconnect.New(cfg.Reconnect.Policy, cfg.Reconnect.Delay, cfg.Reconnect.MaxDelay)
}

func ProvideFeedConnector(cfg *config.Config, log *applogger.Logger) repository.FeedConnector {
	return feed.NewConnector(
		feed.WithHandshakeTimeout(cfg.Feed.HandshakeTimeout),
		feed.WithPingInterval(cfg.Feed.PingInterval),
		feed.WithLogger(log),
	)
}

// ProvideAlertStreamClient creates the stream client. It starts disabled.
func ProvideAlertStreamClient(
	cfg *config.Config,
	connector repository.FeedConnector,
	policy reconnect.Policy,
	hist *history.History,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.AlertStreamClient {
	return usecase.NewAlertStreamClient(cfg.Feed.URL, connector,
		usecase.WithReconnectPolicy(policy),
		usecase.WithHistory(hist),
		usecase.WithThrottleWindow(cfg.Throttle.Window),
		usecase.WithClientMetrics(m),
		usecase.WithClientLogger(log),
	)
}

func ProvideAlertArchiver(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.AlertArchiver {
	return usecase.NewAlertArchiver(pub, store, m, log.Named("archiver"), cfg.Backend.Type, cfg.Backend.QueueSize)
}

func ProvideHistorySync(store repository.HistoryStore, hist *history.History, m repository.Metrics, log *applogger.Logger) *usecase.HistorySync {
	return usecase.NewHistorySync(store, hist, m, log.Named("history"))
}

// ProvideKafkaConsumer creates the archive consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.ArchiveConsumerEnabled() {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(log.Named("consumer")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafkago.Message, _ []byte, err error) {
			log.Warn("archive message failed", applogger.String("topic", topic), applogger.Error(err))
		},
	})
	return consumer, nil
}

// ProvideKafkaAlertsHandler returns nil when there is no storage to archive into.
func ProvideKafkaAlertsHandler(consumer *pkgkafka.Consumer, store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.KafkaAlertsHandler {
	if consumer == nil || store == nil {
		return nil
	}
	return usecase.NewKafkaAlertsHandler(cfg.Kafka.Topic, store, m)
}

func ProvideAlertGateway(log *applogger.Logger, client *usecase.AlertStreamClient) *ws.AlertGateway {
	return ws.NewAlertGateway(log, client)
}

// ProvideHTTPServer builds the echo server with the alert API and relay.
func ProvideHTTPServer(
	cfg *config.Config,
	log *applogger.Logger,
	reg *prometheus.Registry,
	client *usecase.AlertStreamClient,
	hs *usecase.HistorySync,
	gateway *ws.AlertGateway,
) *xhttp.Server {
	alerts := api.NewAlertsEchoHandler(log.Named("api"), client,
		api.WithHistoryClearer(hs),
		api.WithEnableRateLimit(middleware.NewRateLimitStore(1, 5)),
		api.WithFeedURL(cfg.Feed.URL),
	)
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(log),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, prometheus.Gatherers{reg, prometheus.DefaultGatherer}))
	}
	return xhttp.NewServer(xhttp.Handlers{alerts, gateway}, opts...)
}

// ProvideApp creates the application server. Infrastructure that is not
// configured arrives as nil and is skipped.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	client *usecase.AlertStreamClient,
	gateway *ws.AlertGateway,
	httpServer *xhttp.Server,
	archiver *usecase.AlertArchiver,
	hs *usecase.HistorySync,
	consumer *pkgkafka.Consumer,
	handler *usecase.KafkaAlertsHandler,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	var closers []io.Closer
	if producer != nil {
		closers = append(closers, producer)
	}
	if ch != nil {
		closers = append(closers, ch)
	}
	closers = append(closers, c)

	return server.New(server.Components{
		Config:      cfg,
		Logger:      log,
		Client:      client,
		Gateway:     gateway,
		HTTP:        httpServer,
		Archiver:    archiver,
		HistorySync: hs,
		Consumer:    consumer,
		Handler:     handler,
		Closers:     closers,
	})
}
