//go:build wireinject
// +build wireinject

package di

import (
	domrepo "DemandCast/internal/domain/repository"
	internalrepo "DemandCast/internal/repository"
	"DemandCast/internal/services/forecasters"
	"DemandCast/internal/usecase"
	"DemandCast/pkg/config"
	"DemandCast/pkg/metrics"
	"DemandCast/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideTracer,
	ProvideClickHouseClient,
	ProvidePostgresClient,
	ProvideRedisCache,
	ProvideMetrics,
	wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),
)

var repositorySet = wire.NewSet(
	ProvideSalesSource,
	wire.Bind(new(domrepo.SalesSource), new(*internalrepo.CHSalesSource)),
	ProvideForecastSink,
	wire.Bind(new(domrepo.ForecastSink), new(*internalrepo.PGForecastSink)),
	ProvideAccuracySource,
	wire.Bind(new(domrepo.AccuracySource), new(*internalrepo.PGAccuracySource)),
	ProvideRunStore,
	wire.Bind(new(domrepo.RunStateStore), new(*internalrepo.CacheRunStore)),
	ProvideRunEvents,
	ProvideRunTracker,
)

var forecastSet = wire.NewSet(
	ProvideRegistry,
	wire.Bind(new(usecase.TechniqueRegistry), new(*forecasters.Registry)),
	ProvideSeriesPreparer,
	usecase.NewModelSelector,
	ProvideEntityForecaster,
	ProvideBatchScheduler,
	ProvideForecastPipeline,
	ProvideRunService,
	usecase.NewAccuracyTracker,
)

// InitializeApp wires the serving process: HTTP API, run queue worker and Kafka triggers.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		repositorySet,
		forecastSet,
		ProvideRunQueue,
		ProvideRunJobs,
		ProvideKafkaConsumer,
		ProvideKafkaHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeRunner wires the CLI graph without the HTTP server or queue worker.
func InitializeRunner(cfg *config.Config) (*Runner, func(), error) {
	wire.Build(
		infraSet,
		repositorySet,
		forecastSet,
		ProvideProducerQueue,
		ProvideRunner,
	)
	return nil, nil, nil
}
