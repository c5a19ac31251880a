//go:build wireinject
// +build wireinject

package di

import (
	"FinCast/pkg/config"
	"FinCast/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClock,
	ProvideCatalog,
	ProvideExtractor,

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideRedisCache,
	ProvideCache,
	ProvideKafkaProducer,

	// Repositories
	ProvidePriceStore,
	ProvideForecastLog,
	ProvideMarketProvider,
	ProvideMarketData,
	ProvideArtifactStore,
	ProvideModelStore,
	ProvideEventPublisher,

	// Use cases
	ProvideAssembler,
	ProvideForecastService,
	ProvideTrainer,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideTrainRequestHandler,
		ProvideKafkaConsumer,
		ProvideJobQueue,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeRuntime wires the forecasting and training graph without servers.
func InitializeRuntime(cfg *config.Config) (*Runtime, func(), error) {
	wire.Build(coreSet, ProvideRuntime)
	return nil, nil, nil
}
