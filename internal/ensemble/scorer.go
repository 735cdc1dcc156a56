package ensemble

import (
	"fmt"
	"sort"
	"time"

	"TrustPulse/internal/domain/models"
	domsvc "TrustPulse/internal/domain/service"
	"TrustPulse/internal/registry"
)

// Config carries the weighting scheme. Group weights apply to every signal
// in the group; a per-signal weight on the Signal itself overrides them.
type Config struct {
	GroupWeights  map[string]float64
	DefaultWeight float64
}

func (c *Config) normalize() {
	if c.DefaultWeight <= 0 {
		c.DefaultWeight = 1
	}
}

// Scorer combines the current snapshot of normalized scores into a signed
// bias plus a confidence derived from how many expected inputs were present.
// Deterministic and side-effect free.
type Scorer struct {
	cfg Config
	reg *registry.Registry
}

func New(cfg Config, reg *registry.Registry) *Scorer {
	cfg.normalize()
	return &Scorer{cfg: cfg, reg: reg}
}

// Aggregate maps each present score onto [-1,1] around the neutral 50 mark
// and takes the weighted mean. Confidence is the weighted fraction of
// registered signals that contributed; missing or no-data inputs lower it
// but never block aggregation.
func (s *Scorer) Aggregate(scores map[string]models.NormalizedScore) models.EnsembleResult {
	res := models.EnsembleResult{
		Timestamp:  time.Now(),
		Components: make(map[string]float64),
	}

	var weightedSum, presentWeight, expectedWeight float64
	expected := s.reg.All()

	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sig := expected[key]
		w := s.weightFor(sig)
		expectedWeight += w

		sc, ok := scores[key]
		if !ok || sc.NoData {
			res.Missing = append(res.Missing, key)
			continue
		}
		contrib := (sc.Score - 50) / 50 // [-1,1]
		weightedSum += w * contrib
		presentWeight += w
		res.Components[key] = contrib
		res.Reasons = append(res.Reasons, fmt.Sprintf("%s %s (%.0f)", key, sc.Bucket, sc.Score))
	}

	if presentWeight > 0 {
		res.Bias = weightedSum / presentWeight
	}
	if expectedWeight > 0 {
		res.Confidence = presentWeight / expectedWeight
	}
	return res
}

func (s *Scorer) weightFor(sig models.Signal) float64 {
	if sig.Weight > 0 {
		return sig.Weight
	}
	if w, ok := s.cfg.GroupWeights[sig.Group]; ok && w > 0 {
		return w
	}
	return s.cfg.DefaultWeight
}

var _ domsvc.EnsembleScorer = (*Scorer)(nil)
