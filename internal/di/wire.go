//go:build wireinject
// +build wireinject

package di

import (
	"TrustPulse/pkg/config"
	"TrustPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisClient,
		ProvideCache,

		// Repositories
		ProvideHistoryStore,
		ProvideAlertSink,
		ProvideFeedStream,

		// Engine
		ProvideRegistry,
		ProvideAlertManager,
		ProvideEngine,
		ProvideIngestPipeline,

		// Use cases
		ProvideObservationCollector,
		ProvideKafkaConsumer,
		ProvideKafkaObservationsHandler,
		ProvideEngineQueries,
		ProvideHistoryUseCase,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
