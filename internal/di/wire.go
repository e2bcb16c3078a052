//go:build wireinject
// +build wireinject

package di

import (
	"MarketLens/pkg/config"
	"MarketLens/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application with a
// cleanup that releases stores, cache and producer. Wire will generate the
// implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideStores,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideReloadNotifier,
		ProvideThresholdProvider,

		// Use cases
		ProvidePricesUseCase,
		ProvideThresholdsUseCase,
		ProvideAnomalyQueryUseCase,
		ProvideQueryFacade,

		// Transport
		ProvideKafkaConsumer,
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
