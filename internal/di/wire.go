//go:build wireinject
// +build wireinject

package di

import (
	"FolioSim/pkg/config"
	"FolioSim/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideRunArchive,
		ProvideRunPublisher,
		ProvideHistoryStore,

		// Engine and use cases
		ProvideSimulator,
		ProvideResultCache,
		ProvideNotifyJob,
		ProvideJobQueue,
		ProvideNotifier,
		ProvideRunRecorder,
		ProvideArchivePipeline,
		ProvideRunsHandler,
		ProvideSimulateUseCase,
		ProvideHistoryUseCase,

		// HTTP
		ProvideRateLimiter,
		ProvideHandlers,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
