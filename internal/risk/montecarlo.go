package risk

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"TrustPulse/internal/domain/models"
	domsvc "TrustPulse/internal/domain/service"
)

type Config struct {
	Simulations int
	Seed        int64 // 0 = time-seeded
}

func (c *Config) normalize() {
	if c.Simulations <= 0 {
		c.Simulations = 10000
	}
}

// MonteCarlo simulates geometric Brownian motion price paths seeded from a
// signal's rolling statistics and summarizes VaR and the expected terminal
// range. Purely advisory: no portfolio state, no execution.
type MonteCarlo struct {
	cfg Config
}

func New(cfg Config) *MonteCarlo {
	cfg.normalize()
	return &MonteCarlo{cfg: cfg}
}

const tradingDays = 252.0

func (m *MonteCarlo) Estimate(ctx context.Context, signalKey string, last, mean, stddev float64, horizonDays int, confidence float64) (models.RiskEstimate, error) {
	if last <= 0 {
		return models.RiskEstimate{}, fmt.Errorf("risk estimate %s: non-positive last value", signalKey)
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}

	seed := m.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// drift and diffusion from the window stats, expressed as daily rates
	dt := 1.0 / tradingDays
	mu := 0.0
	if mean > 0 {
		mu = (last - mean) / mean * tradingDays / float64(horizonDays)
	}
	sigma := 0.0
	if mean > 0 {
		sigma = stddev / mean * math.Sqrt(tradingDays)
	}

	terminal := make([]float64, m.cfg.Simulations)
	for i := 0; i < m.cfg.Simulations; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return models.RiskEstimate{}, fmt.Errorf("risk estimate %s: %w", signalKey, err)
			}
		}
		logSum := 0.0
		for d := 0; d < horizonDays; d++ {
			z := rng.NormFloat64()
			logSum += (mu-0.5*sigma*sigma)*dt + sigma*math.Sqrt(dt)*z
		}
		terminal[i] = last * math.Exp(logSum)
	}
	sort.Float64s(terminal)

	varIdx := percentileIndex(len(terminal), (1-confidence)*100)
	varTerminal := terminal[varIdx]

	return models.RiskEstimate{
		SignalKey:   signalKey,
		Timestamp:   time.Now(),
		HorizonDays: horizonDays,
		Simulations: m.cfg.Simulations,
		Confidence:  confidence,
		VaRPct:      (varTerminal - last) / last,
		VaRAbsolute: varTerminal - last,
		Median:      terminal[len(terminal)/2],
		RangeLow:    terminal[percentileIndex(len(terminal), 5)],
		RangeHigh:   terminal[percentileIndex(len(terminal), 95)],
	}, nil
}

func percentileIndex(n int, pct float64) int {
	idx := int(float64(n) * pct / 100)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

var _ domsvc.RiskEstimator = (*MonteCarlo)(nil)
