package correlation

import (
	"context"
	"math"
	"testing"
	"time"

	"TrustPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return New(Config{
		MaxLag:            5,
		MinSamples:        20,
		SignificanceLevel: 1.96,
		TickInterval:      time.Minute,
	})
}

// laggedPair builds a reaction that echoes the event lag ticks later with
// some curvature so the series is not collinear at other lags.
func laggedPair(n, lag int) (event, reaction []float64) {
	event = make([]float64, n)
	reaction = make([]float64, n)
	for i := 0; i < n; i++ {
		event[i] = math.Sin(float64(i)*0.7) * 40
	}
	for i := 0; i < n; i++ {
		if i >= lag {
			reaction[i] = event[i-lag]
		} else {
			reaction[i] = math.Cos(float64(i) * 1.3)
		}
	}
	return event, reaction
}

func TestCorrelateRecoversInjectedLag(t *testing.T) {
	e := newTestEngine()
	event, reaction := laggedPair(120, 3)

	h := e.Correlate(context.Background(), event, reaction, 5)
	require.Equal(t, models.HypothesisSignificant, h.Status, "reason=%s", h.Reason)
	assert.Equal(t, 3, h.BestLagTicks)
	assert.Equal(t, 3*time.Minute, h.BestLag)
	assert.InDelta(t, 1.0, h.Coefficient, 0.05)
	assert.GreaterOrEqual(t, math.Abs(h.Significance), 1.96)
}

func TestCorrelateInsufficientSamples(t *testing.T) {
	e := newTestEngine()
	event, reaction := laggedPair(10, 1)

	h := e.Correlate(context.Background(), event, reaction, 5)
	assert.Equal(t, models.HypothesisInconclusive, h.Status)
	assert.Equal(t, "insufficient samples", h.Reason)
	assert.Equal(t, 10, h.SampleCount)
}

func TestCorrelateDegenerateSeries(t *testing.T) {
	e := newTestEngine()
	event := make([]float64, 50) // all zero
	_, reaction := laggedPair(50, 1)

	h := e.Correlate(context.Background(), event, reaction, 5)
	assert.Equal(t, models.HypothesisInconclusive, h.Status)
	assert.Equal(t, "degenerate series", h.Reason)
}

func TestCorrelateCancelledContext(t *testing.T) {
	e := newTestEngine()
	event, reaction := laggedPair(120, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := e.Correlate(ctx, event, reaction, 5)
	assert.Equal(t, models.HypothesisInconclusive, h.Status)
	assert.Equal(t, "timeout", h.Reason)
}

func TestCorrelateIndependentNoise(t *testing.T) {
	e := newTestEngine()
	n := 200
	event := make([]float64, n)
	reaction := make([]float64, n)
	// sinusoids at incommensurate frequencies stay near-orthogonal at
	// every lag the scan visits
	for i := 0; i < n; i++ {
		event[i] = math.Sin(float64(i) * 0.7)
		reaction[i] = math.Sin(float64(i) * 1.9)
	}

	h := e.Correlate(context.Background(), event, reaction, 5)
	assert.Equal(t, models.HypothesisNoCorrelation, h.Status)
	assert.Less(t, math.Abs(h.Significance), 1.96)
}

func TestNegativeLagPreferred(t *testing.T) {
	e := newTestEngine()
	// reaction leads the event by 2 ticks
	reaction, event := laggedPair(120, 2)

	h := e.Correlate(context.Background(), event, reaction, 5)
	require.Equal(t, models.HypothesisSignificant, h.Status)
	assert.Equal(t, -2, h.BestLagTicks)
	assert.Equal(t, -2*time.Minute, h.BestLag)
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	r, ok := pearson(x, y)
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	for i := range y {
		y[i] = -y[i]
	}
	r, _ = pearson(x, y)
	assert.InDelta(t, -1.0, r, 1e-12)
}

func TestCointegratedPair(t *testing.T) {
	n := 120
	x := make([]float64, n)
	y := make([]float64, n)
	// y tracks 2x with a stationary oscillating spread, so the residual
	// series mean-reverts hard
	for i := 0; i < n; i++ {
		x[i] = 0.5*float64(i) + math.Sin(float64(i)*0.3)
		y[i] = 2*x[i] + 0.5*math.Sin(float64(i)*2.0)
	}

	coint, stat := cointegrated(x, y)
	assert.True(t, coint, "tstat=%v", stat)
	assert.Less(t, stat, adfCritical5)
}

func TestCointegrationRejectsShortSeries(t *testing.T) {
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(2 * i)
	}
	coint, stat := cointegrated(x, y)
	assert.False(t, coint)
	assert.Zero(t, stat)
}
