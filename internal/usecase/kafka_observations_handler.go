package usecase

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"TrustPulse/internal/domain/models"
	domrepo "TrustPulse/internal/domain/repository"
	mid "TrustPulse/internal/middleware"
	pkgkafka "TrustPulse/pkg/kafka"
)

// KafkaObservationsHandler consumes observation envelopes from Kafka and
// feeds them through the ingest pipeline.
type KafkaObservationsHandler struct {
	topic   string
	pipe    *mid.IngestPipeline
	metrics domrepo.Metrics
}

func NewKafkaObservationsHandler(topic string, pipe *mid.IngestPipeline, metrics domrepo.Metrics) *KafkaObservationsHandler {
	return &KafkaObservationsHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaObservationsHandler) Topic() string { return h.topic }

// incoming message schema: {signal_key, t, value, quality, producer}
func (h *KafkaObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		SignalKey string   `json:"signal_key"`
		T         int64    `json:"t"`
		Value     *float64 `json:"value"`
		Quality   string   `json:"quality"`
		Producer  string   `json:"producer"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	value := math.NaN() // absent value stays no-data, never zero-filled
	if m.Value != nil {
		value = *m.Value
	}
	producer := m.Producer
	if producer == "" {
		producer = "kafka"
	}
	return h.pipe.Process(ctx, &models.Observation{
		SignalKey: m.SignalKey,
		Timestamp: time.Unix(m.T, 0),
		Value:     value,
		Quality:   models.QualityFlag(m.Quality),
		Producer:  producer,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaObservationsHandler)(nil)
