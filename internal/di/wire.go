//go:build wireinject
// +build wireinject

package di

import (
	"FinAlert/pkg/config"
	"FinAlert/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideAlertStorage,
		ProvideAlertPublisher,
		ProvideHistoryStore,

		// Stream client
		ProvideHistory,
		ProvideReconnectPolicy,
		ProvideFeedConnector,
		ProvideAlertStreamClient,

		// Sinks
		ProvideAlertArchiver,
		ProvideHistorySync,
		ProvideKafkaConsumer,
		ProvideKafkaAlertsHandler,

		// Transport
		ProvideAlertGateway,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
