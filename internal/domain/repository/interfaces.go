package repository

import (
	"context"
	"time"

	"TrustPulse/internal/domain/models"
)

// ObservationStream is a push feed of observations from an external adapter.
type ObservationStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Observation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AlertSink delivers alert state changes to external collaborators.
type AlertSink interface {
	Publish(ctx context.Context, a *models.Alert) error
	PublishBatch(ctx context.Context, alerts []*models.Alert) error
	Close() error
}

// HistoryStore persists score and alert history for the query surface.
// Only what the lookback endpoints need; sliding windows live in memory.
type HistoryStore interface {
	Init(ctx context.Context) error
	StoreScore(ctx context.Context, s *models.NormalizedScore) error
	StoreScoreBatch(ctx context.Context, scores []*models.NormalizedScore) error
	StoreAlert(ctx context.Context, a *models.Alert) error
	QueryScores(ctx context.Context, signalKey string, from, to time.Time, limit int) ([]*models.NormalizedScore, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records engine telemetry.
type Metrics interface {
	RecordObservation(producer, signalKey string)
	RecordError(kind string)
	RecordScore(signalKey string, score float64)
	RecordAnomaly(kind string)
	RecordAlertTransition(state string)
	RecordQueueDepth(shard string, depth int)
	RecordLatency(op string, seconds float64)
}
