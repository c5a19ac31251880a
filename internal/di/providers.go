package di

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/handler/api"
	"FinCast/internal/handler/ws"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/service/yahoo"
	"FinCast/internal/services/features"
	"FinCast/internal/services/session"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	"FinCast/pkg/format"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"
)

const schemaTimeout = 10 * time.Second

// ProvideLogger builds the root application logger.
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

func ProvideClock(cfg *config.Config) (*session.Clock, error) {
	return session.NewClock(cfg.Market.Timezone, cfg.Market.CloseTime)
}

// ProvideCatalog converts the configured instruments into the domain catalog.
func ProvideCatalog(cfg *config.Config) (*models.Catalog, error) {
	items := make([]models.Instrument, 0, len(cfg.Instruments))
	for _, in := range cfg.Instruments {
		items = append(items, models.Instrument{Symbol: in.Symbol, Name: in.Name})
	}
	catalog, err := models.NewCatalog(items)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return catalog, nil
}

func ProvideExtractor(cfg *config.Config) *features.Extractor {
	return features.NewExtractor(cfg.Model.EMASpan)
}

// ProvideClickHouseClient connects and migrates ClickHouse. Returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("addr", client.Addr()))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePriceStore persists bars in ClickHouse, or in memory when it is disabled.
func ProvidePriceStore(ch *pkgch.Client, l *applogger.Logger) domrepo.PriceStore {
	if ch == nil {
		return internalrepo.NewMemoryPriceStore()
	}
	store := internalrepo.NewCHPriceStore(ch)
	store.SetLogger(l.With("price_store"))
	return store
}

func ProvideForecastLog(ch *pkgch.Client, l *applogger.Logger) domrepo.ForecastLog {
	if ch == nil {
		return internalrepo.NopForecastLog{}
	}
	store := internalrepo.NewCHPriceStore(ch)
	store.SetLogger(l.With("forecast_log"))
	return store
}

// ProvideMarketProvider creates the upstream quote client.
func ProvideMarketProvider(cfg *config.Config, clock *session.Clock, l *applogger.Logger) *yahoo.Client {
	httpClient := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Market.Provider.Timeout),
		xhttp.WithRetry(3, 500*time.Millisecond),
	)
	rate := float64(cfg.Market.Provider.RateLimit)
	return yahoo.New(httpClient, clock.Location(),
		yahoo.WithBaseURL(cfg.Market.Provider.BaseURL),
		yahoo.WithRateLimit(rate, rate),
		yahoo.WithLogger(l.With("yahoo")),
	)
}

func ProvideMarketData(cfg *config.Config, upstream *yahoo.Client, store domrepo.PriceStore, l *applogger.Logger) domrepo.MarketData {
	return internalrepo.NewReadThroughMarketData(upstream, store, cfg.Market.Refresh, l)
}

func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) (domrepo.ArtifactStore, error) {
	store, err := internalrepo.NewFileArtifactStore(cfg.Model.Dir)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	store.SetLogger(l.With("artifacts"))
	return store, nil
}

func ProvideModelStore(cfg *config.Config, artifacts domrepo.ArtifactStore) *usecase.ModelStore {
	return usecase.NewModelStore(artifacts, models.NewFeatureSchema(cfg.Model.EMASpan), usecase.ModelStoreConfig{
		Estimators: cfg.Model.Estimators,
		Seed:       cfg.Model.Seed,
		TestRatio:  cfg.Model.TestRatio,
		Workers:    cfg.Model.Workers,
	})
}

// ProvideRedisCache connects to Redis. Returns nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 5*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers memory over Redis when available, otherwise memory only.
// Both variants also serve as the training lock.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) (cache.Service, func()) {
	var svc cache.Service
	if rc != nil {
		svc = cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Redis.MemorySize),
			cache.WithLayeredMemoryTTL(cfg.Redis.MemoryTTL),
		)
	} else {
		svc = cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Redis.MemorySize),
			cache.WithMemoryCleanup(time.Minute),
		)
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes domain events to Kafka, or drops them when it is disabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) (domrepo.EventPublisher, func()) {
	if producer == nil {
		return internalrepo.NopPublisher{}, func() {}
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ForecastsTopic, cfg.Kafka.ModelsTopic)
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka publisher close error", applogger.Error(err))
		}
	}
}

func ProvideAssembler(cfg *config.Config, market domrepo.MarketData, extractor *features.Extractor, store *usecase.ModelStore, clock *session.Clock, l *applogger.Logger) *usecase.ForecastAssembler {
	return usecase.NewForecastAssembler(market, extractor, store, clock, usecase.AssemblerConfig{
		LookbackDays:   cfg.Market.LookbackDays,
		AccuracyWindow: cfg.Model.AccuracyWindow,
	}, l)
}

func ProvideForecastService(
	cfg *config.Config,
	catalog *models.Catalog,
	assembler *usecase.ForecastAssembler,
	clock *session.Clock,
	c cache.Service,
	pub domrepo.EventPublisher,
	history domrepo.ForecastLog,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.ForecastService {
	return usecase.NewForecastService(catalog, assembler, clock, usecase.ForecastServiceDeps{
		Cache:     c,
		CacheTTL:  cfg.Forecast.CacheTTL,
		Publisher: pub,
		History:   history,
		Metrics:   m,
		Logger:    l,
	})
}

func ProvideTrainer(
	cfg *config.Config,
	catalog *models.Catalog,
	market domrepo.MarketData,
	extractor *features.Extractor,
	store *usecase.ModelStore,
	clock *session.Clock,
	c cache.Service,
	pub domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Trainer {
	return usecase.NewTrainer(catalog, market, extractor, store, usecase.TrainerConfig{
		LookbackDays: cfg.Market.LookbackDays,
		Workers:      cfg.Model.Workers,
		Location:     clock.Location(),
	}, usecase.TrainerDeps{
		Publisher: pub,
		Cache:     c,
		Locker:    c,
		Metrics:   m,
		Logger:    l,
	})
}

func ProvideTrainRequestHandler(cfg *config.Config, trainer *usecase.Trainer, l *applogger.Logger) *usecase.TrainRequestHandler {
	return usecase.NewTrainRequestHandler(cfg.Kafka.TrainTopic, trainer, l)
}

// ProvideKafkaConsumer subscribes the training handler. Returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.TrainRequestHandler, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(h)
	return consumer, nil
}

// ProvideJobQueue runs training jobs on Redis lists, or in-process without Redis.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, h *usecase.TrainRequestHandler, l *applogger.Logger) *queue.Queue {
	var backend queue.Backend
	if rc != nil {
		backend = queue.NewRedisBackend(rc.Client())
	} else {
		backend = queue.NewMemoryBackend()
	}
	q := queue.New(l, backend, queue.Config{
		Workers:    1,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
		KeyPrefix:  cfg.Redis.Prefix + ":queue",
	})
	q.RegisterJob(h)
	return q
}

// ProvideHTTPHandler composes the REST and websocket handlers.
func ProvideHTTPHandler(cfg *config.Config, svc *usecase.ForecastService, trainer *usecase.Trainer, q *queue.Queue, l *applogger.Logger) xhttp.Handler {
	rest := api.NewForecastEchoHandler(l, svc, svc, trainer)
	rest.SetQueue(q)
	rest.SetFormat(format.IDR)
	stream := ws.NewForecastStreamHandler(svc, cfg.Server.CORSOrigins, l)
	return xhttp.Handlers{rest, stream}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
		xhttp.WithServerLogger(l),
	)
}

// ProvideApp assembles the long-running service.
func ProvideApp(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, consumer *pkgkafka.Consumer, q *queue.Queue) *server.App {
	return server.New(cfg, l, srv, consumer, q)
}

// Runtime is the object graph used by one-shot CLI commands.
type Runtime struct {
	Logger   *applogger.Logger
	Catalog  *models.Catalog
	Forecast *usecase.ForecastService
	Trainer  *usecase.Trainer
}

func ProvideRuntime(l *applogger.Logger, catalog *models.Catalog, svc *usecase.ForecastService, trainer *usecase.Trainer) *Runtime {
	return &Runtime{Logger: l, Catalog: catalog, Forecast: svc, Trainer: trainer}
}
