package service

import (
	"context"

	"TrustPulse/internal/domain/models"
)

// Normalizer maps a raw observation onto the common 0-100 scale using the
// registered calibration for its signal.
type Normalizer interface {
	Normalize(obs *models.Observation) (models.NormalizedScore, error)
}

// Correlator searches a bounded lag window for association between an event
// series and a reaction series sampled at tick granularity.
type Correlator interface {
	Correlate(ctx context.Context, event, reaction []float64, maxLag int) models.CorrelationHypothesis
}

// EnsembleScorer combines the current score snapshot into a directional bias.
type EnsembleScorer interface {
	Aggregate(scores map[string]models.NormalizedScore) models.EnsembleResult
}

// RiskEstimator produces a Monte Carlo risk summary from window statistics.
type RiskEstimator interface {
	Estimate(ctx context.Context, signalKey string, last, mean, stddev float64, horizonDays int, confidence float64) (models.RiskEstimate, error)
}
