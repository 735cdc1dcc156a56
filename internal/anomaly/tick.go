package anomaly

import (
	"math"
	"time"

	"TrustPulse/internal/domain/models"
)

// TickConfig holds thresholds for the cross-key pass that runs on the
// evaluation tick, after all per-key updates for the tick have completed.
type TickConfig struct {
	SentimentShiftRate  float64    // min score change per tick
	DivergenceMagnitude float64    // min per-leg score move
	DivergencePairs     [][2]string
}

func (c *TickConfig) normalize() {
	if c.SentimentShiftRate <= 0 {
		c.SentimentShiftRate = 15
	}
	if c.DivergenceMagnitude <= 0 {
		c.DivergenceMagnitude = 10
	}
}

// TickAnalyzer evaluates the rules that need a consistent snapshot across
// multiple signal keys: sentiment shifts between consecutive ticks and
// cross-signal divergence within a tick.
type TickAnalyzer struct {
	cfg     TickConfig
	signals map[string]models.Signal
}

func NewTickAnalyzer(cfg TickConfig, signals map[string]models.Signal) *TickAnalyzer {
	cfg.normalize()
	return &TickAnalyzer{cfg: cfg, signals: signals}
}

// Evaluate compares the previous and current tick snapshots. Both maps hold
// the latest NormalizedScore per key; keys absent from either side are
// skipped (no-data never manufactures a shift).
func (t *TickAnalyzer) Evaluate(now time.Time, prev, cur map[string]models.NormalizedScore) []models.AnomalyEvent {
	var events []models.AnomalyEvent

	for key, c := range cur {
		sig, ok := t.signals[key]
		if !ok || sig.Role != models.RoleSentiment {
			continue
		}
		p, ok := prev[key]
		if !ok || p.NoData || c.NoData {
			continue
		}
		delta := c.Score - p.Score
		if math.Abs(delta) < t.cfg.SentimentShiftRate {
			continue
		}
		polarity := 1
		if delta < 0 {
			polarity = -1
		}
		events = append(events, models.AnomalyEvent{
			SignalKey:  key,
			Kind:       models.AnomalySentimentShift,
			Severity:   clamp01(math.Abs(delta) / 100),
			Delta:      delta,
			Polarity:   polarity,
			DetectedAt: now,
		})
	}

	for _, pair := range t.cfg.DivergencePairs {
		a, b := pair[0], pair[1]
		ca, okA := cur[a]
		cb, okB := cur[b]
		pa, okPA := prev[a]
		pb, okPB := prev[b]
		if !okA || !okB || !okPA || !okPB {
			continue
		}
		if ca.NoData || cb.NoData || pa.NoData || pb.NoData {
			continue
		}
		da := ca.Score - pa.Score
		db := cb.Score - pb.Score
		// opposite directions, both legs beyond the minimum magnitude
		if da*db >= 0 {
			continue
		}
		if math.Abs(da) < t.cfg.DivergenceMagnitude || math.Abs(db) < t.cfg.DivergenceMagnitude {
			continue
		}
		events = append(events, models.AnomalyEvent{
			SignalKey:  a,
			PairedKey:  b,
			Kind:       models.AnomalyDivergence,
			Severity:   clamp01((math.Abs(da) + math.Abs(db)) / 200),
			Delta:      da - db,
			DetectedAt: now,
		})
	}

	return events
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
