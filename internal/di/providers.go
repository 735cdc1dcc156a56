package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"TrustPulse/internal/alerts"
	"TrustPulse/internal/anomaly"
	"TrustPulse/internal/correlation"
	"TrustPulse/internal/domain/models"
	"TrustPulse/internal/domain/repository"
	"TrustPulse/internal/engine"
	"TrustPulse/internal/ensemble"
	"TrustPulse/internal/handler/api"
	mid "TrustPulse/internal/middleware"
	"TrustPulse/internal/normalize"
	"TrustPulse/internal/registry"
	internalrepo "TrustPulse/internal/repository"
	"TrustPulse/internal/risk"
	icache "TrustPulse/internal/service/cache"
	"TrustPulse/internal/service/ingest"
	"TrustPulse/internal/usecase"
	pkgcache "TrustPulse/pkg/cache"
	pkgch "TrustPulse/pkg/clickhouse"
	"TrustPulse/pkg/config"
	xhttp "TrustPulse/pkg/http"
	pkgkafka "TrustPulse/pkg/kafka"
	applogger "TrustPulse/pkg/logger"
	"TrustPulse/pkg/metrics"
	"TrustPulse/pkg/queue"
	"TrustPulse/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideRegistry builds the signal registry from config.
func ProvideRegistry(cfg *config.Config) (*registry.Registry, error) {
	signals := make([]models.Signal, 0, len(cfg.Signals))
	for _, sc := range cfg.Signals {
		var cal models.Calibration
		if sc.Calibration.Preset != "" {
			preset, err := registry.PresetCalibration(sc.Calibration.Preset)
			if err != nil {
				return nil, fmt.Errorf("signal %s: %w", sc.Key, err)
			}
			cal = preset
		} else {
			table := make([]models.BucketEntry, 0, len(sc.Calibration.Table))
			for _, row := range sc.Calibration.Table {
				table = append(table, models.BucketEntry{Upper: row.Upper, Score: row.Score})
			}
			cal = models.Calibration{
				Kind:  models.CalibrationKind(sc.Calibration.Kind),
				Min:   sc.Calibration.Min,
				Max:   sc.Calibration.Max,
				Mean:  sc.Calibration.Mean,
				Std:   sc.Calibration.Std,
				Table: table,
			}
		}
		signals = append(signals, models.Signal{
			Key:         sc.Key,
			Source:      sc.Source,
			Instrument:  sc.Instrument,
			Role:        models.SignalRole(sc.Role),
			Unit:        sc.Unit,
			Group:       sc.Group,
			Weight:      sc.Weight,
			Calibration: cal,
		})
	}
	return registry.NewFromSignals(signals)
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if db == "" {
		db = "trustpulse"
	}
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (ts DateTime64(3), signal_key String, score Float64, bucket String, quality String) ENGINE=MergeTree ORDER BY (signal_key, ts)", scoresTable(cfg)),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (ts DateTime64(3), id String, fingerprint String, signal_key String, kind String, state String, priority String, severity Float64, message String) ENGINE=MergeTree ORDER BY (fingerprint, ts)", alertsTable(cfg)),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func scoresTable(cfg *config.Config) string {
	if cfg.ClickHouse.ScoresTable != "" {
		return cfg.ClickHouse.ScoresTable
	}
	return "trustpulse.signal_scores"
}

func alertsTable(cfg *config.Config) string {
	if cfg.ClickHouse.AlertsTable != "" {
		return cfg.ClickHouse.AlertsTable
	}
	return "trustpulse.alerts"
}

// ProvideHistoryStore creates the ClickHouse-backed history store.
func ProvideHistoryStore(chClient *pkgch.Client, cfg *config.Config) repository.HistoryStore {
	return internalrepo.NewCHHistoryStore(chClient, scoresTable(cfg), alertsTable(cfg))
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
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

// ProvideRedisClient creates a shared Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCache selects the bytes cache backing query results: a layered
// memory+Redis cache when Redis is configured, in-process TTL map otherwise.
func ProvideCache(cfg *config.Config) (icache.BytesCache, error) {
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache(), nil
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return icache.NewLayeredBytesCache(pkgcache.NewLayeredCache(rc)), nil
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Noop{}
	}
	return metrics.New()
}

// ProvideAlertSink assembles the configured alert delivery fan-out.
func ProvideAlertSink(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	store repository.HistoryStore,
	rdb *redis.Client,
	lgr *applogger.Logger,
) repository.AlertSink {
	var sinks []repository.AlertSink
	for _, name := range cfg.Alerts.Sinks {
		switch name {
		case "kafka":
			topic := cfg.Kafka.AlertsTopic
			if topic == "" {
				topic = "trustpulse.alerts"
			}
			sinks = append(sinks, internalrepo.NewKafkaAlertSink(producer, topic))
		case "webhook":
			if cfg.Alerts.WebhookURL != "" {
				client := xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
				sinks = append(sinks, internalrepo.NewWebhookAlertSink(cfg.Alerts.WebhookURL, client))
			}
		case "history":
			sinks = append(sinks, internalrepo.NewHistoryAlertSink(store))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, internalrepo.NewHistoryAlertSink(store))
	}

	var retryQ queue.QueueService
	if rdb != nil {
		retryQ = queue.NewRedisPublisher(lgr, rdb, queue.WithKeyPrefix("trustpulse:alerts"))
	}
	return internalrepo.NewMultiSink(retryQ, sinks...)
}

// ProvideAlertManager creates the alert lifecycle manager.
func ProvideAlertManager(cfg *config.Config, m repository.Metrics, sink repository.AlertSink) *alerts.Manager {
	return alerts.NewManager(alerts.Config{
		WarnAt:     cfg.Alerts.WarnAt,
		CriticalAt: cfg.Alerts.CriticalAt,
		EscalateAt: cfg.Alerts.EscalateAt,
		CoolDown:   cfg.Alerts.CoolDown,
		Retention:  cfg.Alerts.Retention,
	}, m, sink)
}

// ProvideEngine assembles the analysis engine.
func ProvideEngine(
	cfg *config.Config,
	reg *registry.Registry,
	alertMgr *alerts.Manager,
	m repository.Metrics,
	store repository.HistoryStore,
	lgr *applogger.Logger,
) (*engine.Engine, error) {
	ec := cfg.Engine

	correlator := correlation.New(correlation.Config{
		MaxLag:            ec.Correlation.MaxLag,
		MinSamples:        ec.Correlation.MinSamples,
		SignificanceLevel: ec.Correlation.SignificanceLevel,
		TickInterval:      ec.TickInterval,
	})
	scorer := ensemble.New(ensemble.Config{
		GroupWeights:  ec.Ensemble.GroupWeights,
		DefaultWeight: ec.Ensemble.DefaultWeight,
	}, reg)
	riskEst := risk.New(risk.Config{
		Simulations: ec.Risk.Simulations,
		Seed:        ec.Risk.Seed,
	})

	return engine.New(
		engine.Config{
			Shards:              ec.Shards,
			QueueSize:           ec.QueueSize,
			Backpressure:        engine.BackpressurePolicy(ec.Backpressure),
			TickInterval:        ec.TickInterval,
			CorrelationInterval: ec.CorrelationInterval,
			CorrelationTimeout:  ec.CorrelationTimeout,
			SeriesCapacity:      ec.SeriesCapacity,
			CorrelationPairs:    ec.Correlation.Pairs,
			Detector:            anomalyConfig(cfg),
			Tick:                anomalyTickConfig(cfg),
		},
		reg,
		normalize.New(reg),
		correlator,
		scorer,
		riskEst,
		alertMgr,
		m,
		store,
		lgr,
	)
}

// ProvideIngestPipeline creates the validation and throttling stage in
// front of the engine.
func ProvideIngestPipeline(eng *engine.Engine, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(eng, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideFeedStream creates the WebSocket observation stream, or nil when
// the feed is disabled.
func ProvideFeedStream(cfg *config.Config) repository.ObservationStream {
	if !cfg.Feed.Enabled {
		return nil
	}
	keys := make([]string, 0, len(cfg.Signals))
	for _, s := range cfg.Signals {
		keys = append(keys, s.Key)
	}
	return ingest.New(
		cfg.Feed.Token,
		cfg.Feed.WebSocketURL,
		keys,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideObservationCollector creates the feed collector, or nil when the
// feed is disabled.
func ProvideObservationCollector(
	stream repository.ObservationStream,
	pipe *mid.IngestPipeline,
	m repository.Metrics,
) *usecase.ObservationCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewObservationCollector(stream, pipe, m)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.ObservationsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaObservationsHandler registers the handler for the
// observations topic.
func ProvideKafkaObservationsHandler(cfg *config.Config, pipe *mid.IngestPipeline, m repository.Metrics) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.ObservationsTopic, pipe, m)
}

// ProvideEngineQueries creates the read-side facade.
func ProvideEngineQueries(eng *engine.Engine, cache icache.BytesCache) *usecase.EngineQueries {
	return usecase.NewEngineQueries(eng, cache)
}

// ProvideHistoryUseCase creates the lookback query use case.
func ProvideHistoryUseCase(store repository.HistoryStore) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store)
}

// ProvideHTTPHandler creates the Echo handler for the engine API.
func ProvideHTTPHandler(
	lgr *applogger.Logger,
	queries *usecase.EngineQueries,
	history *usecase.HistoryUseCase,
	pipe *mid.IngestPipeline,
) xhttp.Handler {
	return api.NewEngineHandler(lgr, queries, history, pipe)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	eng *engine.Engine,
	pipe *mid.IngestPipeline,
	collector *usecase.ObservationCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaObservationsHandler,
	chClient *pkgch.Client,
	rdb *redis.Client,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if rdb != nil {
		// ship aggregated error logs through the redis queue
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "error_logs",
			Publisher:      queue.NewRedisPublisher(lgr, rdb, queue.WithKeyPrefix("trustpulse:logs")),
		})
	}
	return server.New(cfg, lgr, eng, pipe, collector, consumer, kh, chClient, handler)
}

func anomalyConfig(cfg *config.Config) anomaly.Config {
	return anomaly.Config{
		WindowCapacity: cfg.Engine.Detector.WindowCapacity,
		WarmupSize:     cfg.Engine.Detector.WarmupSize,
		ZCutoff:        cfg.Engine.Detector.ZCutoff,
	}
}

func anomalyTickConfig(cfg *config.Config) anomaly.TickConfig {
	return anomaly.TickConfig{
		SentimentShiftRate:  cfg.Engine.Tick.SentimentShiftRate,
		DivergenceMagnitude: cfg.Engine.Tick.DivergenceMagnitude,
		DivergencePairs:     cfg.Engine.Tick.DivergencePairs,
	}
}
