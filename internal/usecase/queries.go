package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TrustPulse/internal/domain/models"
	"TrustPulse/internal/engine"
	icache "TrustPulse/internal/service/cache"
)

// EngineQueries is the read-side facade over the running engine: current
// scores, open alerts, hypotheses, ensemble output, and risk estimates.
// Risk estimates are cached since each one runs a full simulation.
type EngineQueries struct {
	eng     *engine.Engine
	cache   icache.BytesCache
	riskTTL time.Duration
	hypoTTL time.Duration
}

func NewEngineQueries(eng *engine.Engine, cache icache.BytesCache) *EngineQueries {
	return &EngineQueries{eng: eng, cache: cache, riskTTL: 5 * time.Minute, hypoTTL: 30 * time.Second}
}

func (q *EngineQueries) Score(ctx context.Context, signalKey string) (models.NormalizedScore, error) {
	s, ok, err := q.eng.LatestScore(signalKey)
	if err != nil {
		return models.NormalizedScore{}, err
	}
	if !ok {
		return models.NormalizedScore{}, fmt.Errorf("score %s: no observations yet", signalKey)
	}
	return s, nil
}

func (q *EngineQueries) Watchlist(ctx context.Context, group string) []engine.WatchlistEntry {
	return q.eng.Watchlist(group)
}

func (q *EngineQueries) Anomalies(ctx context.Context, signalKey string, limit int) []models.AnomalyEvent {
	return q.eng.RecentAnomalies(signalKey, limit)
}

func (q *EngineQueries) Alerts(ctx context.Context, state string) []models.Alert {
	return q.eng.Alerts(models.AlertState(state))
}

func (q *EngineQueries) Correlation(ctx context.Context, eventKey, reactionKey string) (models.CorrelationHypothesis, error) {
	h, ok := q.eng.Hypothesis(eventKey, reactionKey)
	if !ok {
		return models.CorrelationHypothesis{}, fmt.Errorf("correlation %s->%s: no hypothesis computed yet", eventKey, reactionKey)
	}
	return h, nil
}

// Correlations caches the full hypothesis list briefly; the scan that feeds
// it only runs once per correlation interval anyway.
func (q *EngineQueries) Correlations(ctx context.Context) []models.CorrelationHypothesis {
	const key = "correlations:all"
	if q.cache != nil {
		if b, ok, err := q.cache.GetBytes(key); err == nil && ok {
			var out []models.CorrelationHypothesis
			if json.Unmarshal(b, &out) == nil {
				return out
			}
		}
	}
	out := q.eng.Hypotheses()
	if q.cache != nil && len(out) > 0 {
		if b, err := json.Marshal(out); err == nil {
			_ = q.cache.SetBytes(key, b, q.hypoTTL)
		}
	}
	return out
}

func (q *EngineQueries) Ensemble(ctx context.Context) models.EnsembleResult {
	return q.eng.Ensemble()
}

func (q *EngineQueries) Risk(ctx context.Context, signalKey string, horizonDays int, confidence float64) (models.RiskEstimate, error) {
	key := fmt.Sprintf("risk:%s:%d:%.2f", signalKey, horizonDays, confidence)
	if q.cache != nil {
		if b, ok, err := q.cache.GetBytes(key); err == nil && ok {
			var est models.RiskEstimate
			if json.Unmarshal(b, &est) == nil {
				return est, nil
			}
		}
	}

	est, err := q.eng.Risk(ctx, signalKey, horizonDays, confidence)
	if err != nil {
		return models.RiskEstimate{}, err
	}
	if q.cache != nil {
		if b, err := json.Marshal(est); err == nil {
			_ = q.cache.SetBytes(key, b, q.riskTTL)
		}
	}
	return est, nil
}
