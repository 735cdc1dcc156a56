package engine

import (
	"context"
	"fmt"
	"sort"

	"TrustPulse/internal/domain/models"
	"TrustPulse/internal/registry"
)

// WatchlistEntry is one row of the current-score view.
type WatchlistEntry struct {
	Signal models.Signal          `json:"signal"`
	Score  *models.NormalizedScore `json:"score,omitempty"`
	Status models.DetectorStatus  `json:"status"`
}

// LatestScore returns the current score for a registered key, or an error
// if the key is unknown. A registered key with no data yet returns ok=false.
func (e *Engine) LatestScore(key string) (models.NormalizedScore, bool, error) {
	if !e.reg.Has(key) {
		return models.NormalizedScore{}, false, fmt.Errorf("score: %w: %s", registry.ErrUnregisteredSignal, key)
	}
	e.mu.RLock()
	s, ok := e.latest[key]
	e.mu.RUnlock()
	return s, ok, nil
}

// Watchlist returns every registered signal with its latest score and window
// state, optionally filtered by ensemble group.
func (e *Engine) Watchlist(group string) []WatchlistEntry {
	signals := e.reg.All()
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]WatchlistEntry, 0, len(keys))
	for _, k := range keys {
		sig := signals[k]
		if group != "" && sig.Group != group {
			continue
		}
		entry := WatchlistEntry{Signal: sig, Status: models.StatusWarming}
		if st, ok := e.stats[k]; ok {
			entry.Status = st.status
		}
		if s, ok := e.latest[k]; ok {
			sc := s
			entry.Score = &sc
		}
		out = append(out, entry)
	}
	return out
}

// Ensemble returns the result of the most recent tick aggregation.
func (e *Engine) Ensemble() models.EnsembleResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ensemble
}

// Hypothesis returns the latest correlation hypothesis for a pair.
func (e *Engine) Hypothesis(eventKey, reactionKey string) (models.CorrelationHypothesis, bool) {
	e.mu.RLock()
	h, ok := e.hypos[pairKey(eventKey, reactionKey)]
	e.mu.RUnlock()
	return h, ok
}

// Hypotheses returns all current hypotheses.
func (e *Engine) Hypotheses() []models.CorrelationHypothesis {
	e.mu.RLock()
	out := make([]models.CorrelationHypothesis, 0, len(e.hypos))
	for _, h := range e.hypos {
		out = append(out, h)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventKey != out[j].EventKey {
			return out[i].EventKey < out[j].EventKey
		}
		return out[i].ReactionKey < out[j].ReactionKey
	})
	return out
}

// RecentAnomalies returns the newest events, optionally per key.
func (e *Engine) RecentAnomalies(key string, limit int) []models.AnomalyEvent {
	if limit <= 0 {
		limit = 100
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.AnomalyEvent, 0, limit)
	for i := len(e.anomalies) - 1; i >= 0 && len(out) < limit; i-- {
		ev := e.anomalies[i]
		if key != "" && ev.SignalKey != key && ev.PairedKey != key {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Alerts returns lifecycle-managed alerts, optionally filtered by state.
func (e *Engine) Alerts(state models.AlertState) []models.Alert {
	return e.alertMgr.List(state)
}

// Risk runs a Monte Carlo estimate off the key's current window statistics.
func (e *Engine) Risk(ctx context.Context, key string, horizonDays int, confidence float64) (models.RiskEstimate, error) {
	if !e.reg.Has(key) {
		return models.RiskEstimate{}, fmt.Errorf("risk: %w: %s", registry.ErrUnregisteredSignal, key)
	}
	e.mu.RLock()
	st, ok := e.stats[key]
	e.mu.RUnlock()
	if !ok || st.status != models.StatusReady {
		return models.RiskEstimate{}, fmt.Errorf("risk %s: window still warming", key)
	}
	return e.riskEst.Estimate(ctx, key, st.last, st.mean, st.stddev, horizonDays, confidence)
}
