// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"TrustPulse/pkg/config"
	"TrustPulse/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := ProvideRegistry(cfg)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics(cfg)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	historyStore := ProvideHistoryStore(client, cfg)
	redisClient := ProvideRedisClient(cfg)
	alertSink := ProvideAlertSink(cfg, producer, historyStore, redisClient, logger)
	manager := ProvideAlertManager(cfg, metrics, alertSink)
	engine, err := ProvideEngine(cfg, registry, manager, metrics, historyStore, logger)
	if err != nil {
		return nil, err
	}
	ingestPipeline := ProvideIngestPipeline(engine, metrics)
	observationStream := ProvideFeedStream(cfg)
	observationCollector := ProvideObservationCollector(observationStream, ingestPipeline, metrics)
	consumer, err := ProvideKafkaConsumer(cfg)
	if err != nil {
		return nil, err
	}
	kafkaObservationsHandler := ProvideKafkaObservationsHandler(cfg, ingestPipeline, metrics)
	bytesCache, err := ProvideCache(cfg)
	if err != nil {
		return nil, err
	}
	engineQueries := ProvideEngineQueries(engine, bytesCache)
	historyUseCase := ProvideHistoryUseCase(historyStore)
	handler := ProvideHTTPHandler(logger, engineQueries, historyUseCase, ingestPipeline)
	app := ProvideApp(cfg, logger, engine, ingestPipeline, observationCollector, consumer, kafkaObservationsHandler, client, redisClient, handler)
	return app, nil
}
