package di

import (
	"context"
	"fmt"
	"time"

	"DemandCast/internal/handler/api"
	domrepo "DemandCast/internal/domain/repository"
	domsvc "DemandCast/internal/domain/service"
	internalrepo "DemandCast/internal/repository"
	"DemandCast/internal/services/features"
	"DemandCast/internal/services/forecasters"
	"DemandCast/internal/services/tracking"
	"DemandCast/internal/usecase"
	"DemandCast/pkg/cache"
	pkgch "DemandCast/pkg/clickhouse"
	"DemandCast/pkg/config"
	xhttp "DemandCast/pkg/http"
	pkgkafka "DemandCast/pkg/kafka"
	"DemandCast/pkg/logger"
	"DemandCast/pkg/metrics"
	pkgotel "DemandCast/pkg/otel"
	pkgpg "DemandCast/pkg/postgres"
	"DemandCast/pkg/queue"
	"DemandCast/pkg/server"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const day = 24 * time.Hour

// Runner is the CLI-facing graph: synchronous runs and accuracy reports.
type Runner struct {
	Runs     *usecase.RunService
	Accuracy *usecase.AccuracyTracker
	Log      *logger.Logger
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the root logger. With Kafka on, error entries are folded
// and shipped to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	log = log.With(logger.String("service", "demandcast"), logger.String("env", cfg.Environment))
	if producer == nil {
		return log, func() {}, nil
	}
	log.AttachCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.Topics.Logs,
		Publisher:      producer,
	})
	return log, log.DetachCollector, nil
}

func ProvideTracer(cfg *config.Config, log *logger.Logger) (*sdktrace.TracerProvider, func(), error) {
	ocfg := pkgotel.DefaultConfig("demandcast")
	ocfg.Enabled = cfg.Tracing.Enabled
	ocfg.Environment = cfg.Environment
	ocfg.CollectorEndpoint = cfg.Tracing.Endpoint
	ocfg.SamplingRate = cfg.Tracing.SamplingRate
	ocfg.ServiceVersion = cfg.Forecast.ModelVersion

	tp, err := pkgotel.InitTracer(context.Background(), ocfg)
	if err != nil {
		return nil, nil, err
	}
	if tp == nil {
		return nil, func() {}, nil
	}
	log.Info("tracing enabled", logger.String("endpoint", cfg.Tracing.Endpoint))
	return tp, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pkgotel.Shutdown(ctx, tp)
	}, nil
}

func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Postgres.ConnectTimeout+5*time.Second)
	defer cancel()
	client, err := pkgpg.NewClient(ctx,
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithMaxConns(cfg.Postgres.MaxConns),
		pkgpg.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, client.Close, nil
}

func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return c, func() { _ = c.Close() }, nil
}

// ProvideMetrics registers on the default Prometheus registry served at /metrics.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

func ProvideSalesSource(ch *pkgch.Client, cfg *config.Config, log *logger.Logger) *internalrepo.CHSalesSource {
	return internalrepo.NewCHSalesSource(ch, cfg.ClickHouse.SalesTable, log)
}

func ProvideForecastSink(pg *pkgpg.Client, cfg *config.Config, log *logger.Logger) *internalrepo.PGForecastSink {
	return internalrepo.NewPGForecastSink(pg, cfg.Postgres.ForecastTable, cfg.Postgres.UpsertChunk, log)
}

func ProvideAccuracySource(pg *pkgpg.Client, sales *internalrepo.CHSalesSource, cfg *config.Config) *internalrepo.PGAccuracySource {
	return internalrepo.NewPGAccuracySource(pg, cfg.Postgres.ForecastTable, sales)
}

func ProvideRunStore(c *cache.RedisCache, cfg *config.Config) *internalrepo.CacheRunStore {
	return internalrepo.NewCacheRunStore(c, cfg.Redis.StatusTTL, cfg.Redis.LockTTL)
}

// ProvideRunEvents returns a nil publisher when Kafka is disabled.
func ProvideRunEvents(producer *pkgkafka.Producer, cfg *config.Config) domrepo.RunEventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaRunEvents(producer, cfg.Kafka.Topics.RunEvents)
}

// ProvideRunTracker returns a nil tracker when tracking is disabled.
func ProvideRunTracker(cfg *config.Config, log *logger.Logger) (domsvc.RunTracker, error) {
	if !cfg.Tracking.Enabled {
		return nil, nil
	}
	c, err := tracking.NewMLflowClient(tracking.Config{
		URL:            cfg.Tracking.URL,
		Experiment:     cfg.Tracking.Experiment,
		Timeout:        cfg.Tracking.Timeout,
		RequestsPerSec: cfg.Tracking.RequestsPerSec,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("mlflow client: %w", err)
	}
	return c, nil
}

func ProvideRegistry(cfg *config.Config) *forecasters.Registry {
	return forecasters.Default(cfg.Forecast.EnabledTechniques)
}

func ProvideSeriesPreparer(cfg *config.Config) *features.SeriesPreparer {
	return features.NewSeriesPreparer(cfg.Forecast.MinHistoryDays)
}

func ProvideEntityForecaster(
	prep *features.SeriesPreparer,
	sel *usecase.ModelSelector,
	reg *forecasters.Registry,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.EntityForecaster {
	return usecase.NewEntityForecaster(prep, sel, reg, log,
		usecase.WithEntityTimeout(cfg.Forecast.EntityTimeout),
		usecase.WithModelVersion(cfg.Forecast.ModelVersion),
	)
}

func ProvideBatchScheduler(
	source domrepo.SalesSource,
	ef *usecase.EntityForecaster,
	m domrepo.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.BatchScheduler {
	return usecase.NewBatchScheduler(source, ef, m, log, usecase.BatchSchedulerConfig{
		BatchSize:    cfg.Forecast.BatchSize,
		Workers:      cfg.Forecast.Workers,
		BatchTimeout: cfg.Forecast.BatchTimeout,
	})
}

func ProvideForecastPipeline(
	source domrepo.SalesSource,
	sink domrepo.ForecastSink,
	sched *usecase.BatchScheduler,
	tracker domsvc.RunTracker,
	events domrepo.RunEventPublisher,
	m domrepo.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.ForecastPipeline {
	return usecase.NewForecastPipeline(source, sink, sched, tracker, events, m, log, usecase.PipelineConfig{
		ActiveWindow:    time.Duration(cfg.Forecast.ActiveWindowDays) * day,
		MinTransactions: cfg.Forecast.MinTransactions,
		ClassifyWindow:  time.Duration(cfg.Forecast.ClassifyDays) * day,
		UpsertRetries:   cfg.Postgres.UpsertRetries,
		ModelVersion:    cfg.Forecast.ModelVersion,
		Environment:     cfg.Environment,
		BatchSize:       cfg.Forecast.BatchSize,
		Workers:         cfg.Forecast.Workers,
	})
}

func newRunQueue(cfg *config.Config, log *logger.Logger, c *cache.RedisCache, mode queue.QueueMode) *queue.RedisQueue {
	return queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Queue.JobTimeout,
	}, c.Client(), mode, queue.WithKeyPrefix(cache.Key(cfg.Redis.Prefix, "queue", cfg.Queue.Name)))
}

// ProvideRunQueue is the serving queue: it accepts submissions and executes them.
func ProvideRunQueue(cfg *config.Config, log *logger.Logger, c *cache.RedisCache) *queue.RedisQueue {
	return newRunQueue(cfg, log, c, queue.ModeProducerConsumer)
}

// ProvideProducerQueue never consumes; the CLI runs synchronously.
func ProvideProducerQueue(cfg *config.Config, log *logger.Logger, c *cache.RedisCache) *queue.RedisQueue {
	return newRunQueue(cfg, log, c, queue.ModeProducerOnly)
}

func ProvideRunService(
	p *usecase.ForecastPipeline,
	store domrepo.RunStateStore,
	q *queue.RedisQueue,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.RunService {
	return usecase.NewRunService(p, store, q, log, cfg.Forecast.HorizonDays)
}

func ProvideRunJobs(runs *usecase.RunService, log *logger.Logger) []queue.Job {
	return []queue.Job{usecase.NewRunJob(runs, log)}
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideKafkaHandlers(runs *usecase.RunService, log *logger.Logger, cfg *config.Config) []pkgkafka.MessageHandler {
	return []pkgkafka.MessageHandler{usecase.NewTriggerHandler(cfg.Kafka.Topics.Triggers, runs, log)}
}

func ProvideHTTPServer(
	cfg *config.Config,
	log *logger.Logger,
	rec *metrics.Recorder,
	runs *usecase.RunService,
	acc *usecase.AccuracyTracker,
	ch *pkgch.Client,
	pg *pkgpg.Client,
	rc *cache.RedisCache,
) *xhttp.Server {
	checks := map[string]api.HealthCheck{
		"clickhouse": ch.Health,
		"postgres":   pg.Health,
		"redis": func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		},
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(log),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(rec, cfg.Metrics.Path))
	}
	return xhttp.NewServer([]xhttp.Handler{
		api.NewForecastEchoHandler(log, runs, acc, checks),
		api.NewRunStreamHandler(log, runs),
	}, opts...)
}

func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	q *queue.RedisQueue,
	jobs []queue.Job,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	_ *sdktrace.TracerProvider,
) *server.App {
	return server.New(cfg, log, httpServer, q, jobs, consumer, handlers)
}

func ProvideRunner(
	runs *usecase.RunService,
	acc *usecase.AccuracyTracker,
	log *logger.Logger,
	_ *sdktrace.TracerProvider,
) *Runner {
	return &Runner{Runs: runs, Accuracy: acc, Log: log}
}
