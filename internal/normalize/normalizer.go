package normalize

import (
	"fmt"
	"math"

	"TrustPulse/internal/domain/models"
	domsvc "TrustPulse/internal/domain/service"
	"TrustPulse/internal/registry"
)

// Normalizer maps observations onto [0,100] using the calibration registered
// for the signal. Pure: no state beyond the registry reference.
type Normalizer struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Normalizer {
	return &Normalizer{reg: reg}
}

// Normalize converts a raw observation to a NormalizedScore. Non-finite
// values produce a no-data score, never a silent zero-fill. An unregistered
// key is a configuration error and is returned to the caller.
func (n *Normalizer) Normalize(obs *models.Observation) (models.NormalizedScore, error) {
	if obs == nil {
		return models.NormalizedScore{}, fmt.Errorf("normalize: nil observation")
	}
	sig, err := n.reg.Lookup(obs.SignalKey)
	if err != nil {
		return models.NormalizedScore{}, fmt.Errorf("normalize: %w", err)
	}

	out := models.NormalizedScore{
		SignalKey: obs.SignalKey,
		Timestamp: obs.Timestamp,
		Quality:   obs.Quality,
	}

	if math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) {
		out.NoData = true
		out.Bucket = models.BucketNoData
		return out, nil
	}

	score := apply(sig.Calibration, obs.Value)
	out.Score = clamp(score, 0, 100)
	out.Bucket = models.BucketFor(out.Score)
	return out, nil
}

func apply(c models.Calibration, v float64) float64 {
	switch c.Kind {
	case models.CalibrationLinear:
		return (v - c.Min) / (c.Max - c.Min) * 100
	case models.CalibrationZScore:
		z := (v - c.Mean) / c.Std
		return normalCDF(z) * 100
	case models.CalibrationCategorical:
		for _, b := range c.Table {
			if v <= b.Upper {
				return b.Score
			}
		}
		// above the last bucket: take the top bucket's score
		return c.Table[len(c.Table)-1].Score
	default:
		return 50
	}
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ domsvc.Normalizer = (*Normalizer)(nil)
