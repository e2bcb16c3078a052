package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketLens/internal/domain/repository"
	"MarketLens/internal/handler/api"
	internalrepo "MarketLens/internal/repository"
	"MarketLens/internal/services/thresholds"
	"MarketLens/internal/usecase"
	"MarketLens/pkg/cache"
	pkgch "MarketLens/pkg/clickhouse"
	"MarketLens/pkg/config"
	pkgkafka "MarketLens/pkg/kafka"
	applogger "MarketLens/pkg/logger"
	"MarketLens/pkg/metrics"
	pkgpg "MarketLens/pkg/postgres"
	"MarketLens/pkg/server"
)

// statsCacheEntries bounds the in-process stats cache; one entry per
// distinct symbol filter.
const statsCacheEntries = 256

// Stores groups the row stores chosen by storage.backend together with the
// clients that must be closed on shutdown.
type Stores struct {
	Prices    repository.PriceStore
	Anomalies repository.AnomalyStore
	ch        *pkgch.Client
	pg        *pkgpg.Client
}

// Close releases the database clients, if any.
func (s *Stores) Close() error {
	var first error
	if s.ch != nil {
		first = s.ch.Close()
	}
	if s.pg != nil {
		if err := s.pg.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

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
	return l.With(applogger.String("instance", cfg.InstanceID)), nil
}

var (
	recorderOnce sync.Once
	recorder     *metrics.Recorder
)

// ProvideMetrics returns the process-wide recorder. Its collectors live on the
// default registry, so it is created once however many times the injector
// runs.
func ProvideMetrics() repository.Metrics {
	recorderOnce.Do(func() { recorder = metrics.New() })
	return recorder
}

// ProvideStores opens the configured backend. The returned cleanup closes the
// database clients.
func ProvideStores(cfg *config.Config, l *applogger.Logger) (*Stores, func(), error) {
	stores, err := openStores(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := stores.Close(); err != nil {
			l.Warn("close stores", applogger.Error(err))
		}
	}
	return stores, cleanup, nil
}

func openStores(cfg *config.Config, l *applogger.Logger) (*Stores, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		prices := internalrepo.NewMemoryPriceStore()
		anomalies := internalrepo.NewMemoryAnomalyStore()
		if err := internalrepo.LoadFixtures(cfg.Storage.Fixtures, prices, anomalies); err != nil {
			return nil, err
		}
		l.Info("memory backend ready", applogger.String("fixtures", cfg.Storage.Fixtures))
		return &Stores{Prices: prices, Anomalies: anomalies}, nil
	}

	ch, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	pg, err := ProvidePostgresClient(cfg)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	if cfg.Storage.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ch.InitSchema(ctx, internalrepo.PriceSchema); err != nil {
			_ = ch.Close()
			_ = pg.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		if err := pg.InitSchema(ctx, internalrepo.AnomalySchema); err != nil {
			_ = ch.Close()
			_ = pg.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	l.Info("sql backend ready",
		applogger.String("clickhouse", cfg.ClickHouse.Host),
		applogger.String("price_table", cfg.ClickHouse.Table),
	)
	return &Stores{
		Prices:    internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.Table, l),
		Anomalies: internalrepo.NewPGAnomalyStore(pg, l),
		ch:        ch,
		pg:        pg,
	}, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithMaxResultRows(cfg.ClickHouse.MaxResultRows),
		pkgch.WithReadOnly(!cfg.Storage.InitSchema),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePostgresClient creates the Postgres client for anomalies.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
		pkgpg.WithConnLifetime(cfg.Postgres.ConnMaxLifetime, cfg.Postgres.ConnMaxIdleTime),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideCache returns the stats cache, or nil when stats must be computed
// on every call. Caching is opt-in: it needs a positive query.stats_cache_ttl
// and Kafka, whose anomalies.detected events are the only thing that evicts
// stale stats. Redis is used when enabled, otherwise an in-process cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if cfg.Query.StatsCacheTTL <= 0 || !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	var c cache.Service
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
			cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, cfg.Redis.Timeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		c = rc
	} else {
		c = cache.NewMemoryCache(
			cache.WithMemoryMaxSize(statsCacheEntries),
			cache.WithMemoryCleanup(cfg.Query.StatsCacheTTL),
		)
	}
	cleanup := func() {
		if err := c.Close(); err != nil {
			l.Warn("close cache", applogger.Error(err))
		}
	}
	return c, cleanup, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("close kafka producer", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideReloadNotifier publishes threshold reloads when Kafka is on.
func ProvideReloadNotifier(producer *pkgkafka.Producer, cfg *config.Config) repository.ReloadNotifier {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaReloadNotifier(producer, cfg.Kafka.ThresholdsTopic, cfg.InstanceID)
}

// ProvideThresholdProvider loads the threshold document eagerly so a broken
// file stops the process at startup.
func ProvideThresholdProvider(cfg *config.Config, l *applogger.Logger) (*thresholds.Provider, error) {
	p := thresholds.NewProvider(thresholds.FileLoader(cfg.Thresholds.Path), l)
	if _, err := p.Config(); err != nil {
		return nil, err
	}
	return p, nil
}

func ProvidePricesUseCase(stores *Stores, m repository.Metrics, l *applogger.Logger) *usecase.PricesUseCase {
	return usecase.NewPricesUseCase(stores.Prices, m, l)
}

func ProvideThresholdsUseCase(p *thresholds.Provider, n repository.ReloadNotifier, m repository.Metrics, l *applogger.Logger) *usecase.ThresholdsUseCase {
	return usecase.NewThresholdsUseCase(p, n, m, l)
}

func ProvideAnomalyQueryUseCase(stores *Stores, m repository.Metrics, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.AnomalyQueryUseCase {
	var opts []usecase.AnomalyQueryOption
	if c != nil {
		opts = append(opts, usecase.WithStatsCache(c, cfg.Query.StatsCacheTTL))
	}
	return usecase.NewAnomalyQueryUseCase(stores.Anomalies, m, l, opts...)
}

func ProvideQueryFacade(prices *usecase.PricesUseCase, th *usecase.ThresholdsUseCase, anomalies *usecase.AnomalyQueryUseCase, stores *Stores) *usecase.QueryFacade {
	return usecase.NewQueryFacade(prices, th, anomalies, map[string]usecase.HealthChecker{
		"prices":    stores.Prices,
		"anomalies": stores.Anomalies,
	})
}

// ProvideKafkaConsumer subscribes to the invalidation topics, or returns nil
// when Kafka is off. Each replica uses its own group so every instance sees
// every event.
func ProvideKafkaConsumer(
	cfg *config.Config,
	l *applogger.Logger,
	m repository.Metrics,
	anomalies *usecase.AnomalyQueryUseCase,
	th *usecase.ThresholdsUseCase,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupPrefix+"-"+cfg.InstanceID),
		pkgkafka.WithConsumerAutoOffsetReset(cc.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.OriginHook()))
	consumer.RegisterHandler(usecase.NewAnomalyEventsHandler(cfg.Kafka.AnomaliesTopic, anomalies, m, l))
	consumer.RegisterHandler(usecase.NewThresholdEventsHandler(cfg.Kafka.ThresholdsTopic, cfg.InstanceID, th, l))
	return consumer, nil
}

func ProvideHTTPHandler(cfg *config.Config, l *applogger.Logger, facade *usecase.QueryFacade) *api.QueryEchoHandler {
	stream := api.NewAnomalyStream(facade, cfg.Query.StreamPollInterval, l)
	return api.NewQueryEchoHandler(l, facade, stream)
}

// ProvideApp creates the application server. Resources opened by the other
// providers are released by the injector's cleanup, after Run returns.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.QueryEchoHandler,
	consumer *pkgkafka.Consumer,
) *server.App {
	return server.New(cfg, l, handler, consumer)
}
