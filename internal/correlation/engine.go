package correlation

import (
	"context"
	"math"
	"time"

	"TrustPulse/internal/domain/models"
	domsvc "TrustPulse/internal/domain/service"
)

type Config struct {
	MaxLag            int           // lag scan bound, in ticks
	MinSamples        int           // minimum overlap per lag
	SignificanceLevel float64       // min |Fisher z| to call significant
	TickInterval      time.Duration // converts lag ticks to duration
}

func (c *Config) normalize() {
	if c.MaxLag <= 0 {
		c.MaxLag = 10
	}
	if c.MinSamples < 4 {
		c.MinSamples = 20
	}
	if c.SignificanceLevel <= 0 {
		c.SignificanceLevel = 1.96
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
}

// Engine runs the batch lag scan. The search is O(len × lag range), so it is
// invoked on a schedule, not per observation, and honors ctx cancellation.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	cfg.normalize()
	return &Engine{cfg: cfg}
}

// Correlate scans lags in [-maxLag, +maxLag] at tick granularity and returns
// the hypothesis for the lag maximizing |r|. Degenerate inputs, small
// samples, and cancellation all yield an inconclusive result, never a panic.
func (e *Engine) Correlate(ctx context.Context, event, reaction []float64, maxLag int) models.CorrelationHypothesis {
	if maxLag <= 0 || maxLag > e.cfg.MaxLag {
		maxLag = e.cfg.MaxLag
	}
	h := models.CorrelationHypothesis{
		Status:     models.HypothesisInconclusive,
		ComputedAt: time.Now(),
	}

	n := len(event)
	if len(reaction) < n {
		n = len(reaction)
	}
	if n < e.cfg.MinSamples {
		h.Reason = "insufficient samples"
		h.SampleCount = n
		return h
	}
	if isConstant(event[:n]) || isConstant(reaction[:n]) {
		h.Reason = "degenerate series"
		h.SampleCount = n
		return h
	}

	bestAbs := -1.0
	for lag := -maxLag; lag <= maxLag; lag++ {
		if err := ctx.Err(); err != nil {
			h.Status = models.HypothesisInconclusive
			h.Reason = "timeout"
			return h
		}
		r, count, ok := pearsonAtLag(event[:n], reaction[:n], lag)
		if !ok || count < e.cfg.MinSamples {
			continue
		}
		if math.Abs(r) > bestAbs {
			bestAbs = math.Abs(r)
			h.Coefficient = r
			h.BestLagTicks = lag
			h.SampleCount = count
		}
	}
	if bestAbs < 0 {
		h.Reason = "no usable lag overlap"
		return h
	}

	h.BestLag = time.Duration(h.BestLagTicks) * e.cfg.TickInterval
	h.Significance = fisherZ(h.Coefficient, h.SampleCount)
	if math.Abs(h.Significance) >= e.cfg.SignificanceLevel {
		h.Status = models.HypothesisSignificant
	} else {
		h.Status = models.HypothesisNoCorrelation
	}

	if coint, stat := cointegrated(event[:n], reaction[:n]); coint {
		h.Cointegrated = true
		h.ResidualStat = stat
	} else {
		h.ResidualStat = stat
	}
	return h
}

// pearsonAtLag correlates event[i] with reaction[i+lag] over the overlap.
func pearsonAtLag(event, reaction []float64, lag int) (float64, int, bool) {
	var xs, ys []float64
	for i := range event {
		j := i + lag
		if j < 0 || j >= len(reaction) {
			continue
		}
		xs = append(xs, event[i])
		ys = append(ys, reaction[j])
	}
	r, ok := pearson(xs, ys)
	return r, len(xs), ok
}

func pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0, false
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// fisherZ is the Fisher-transform test statistic z = atanh(r)·sqrt(n-3).
func fisherZ(r float64, n int) float64 {
	if n <= 3 {
		return 0
	}
	// clamp away from ±1 to keep atanh finite
	if r > 0.999999 {
		r = 0.999999
	} else if r < -0.999999 {
		r = -0.999999
	}
	return math.Atanh(r) * math.Sqrt(float64(n-3))
}

func isConstant(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[0] {
			return false
		}
	}
	return true
}

var _ domsvc.Correlator = (*Engine)(nil)
