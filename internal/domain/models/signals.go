package models

import "time"

// AnomalyKind names the detection rule that fired.
type AnomalyKind string

const (
	AnomalyVolumeSpike    AnomalyKind = "volume-spike"
	AnomalySentimentShift AnomalyKind = "sentiment-shift"
	AnomalyDivergence     AnomalyKind = "cross-signal-divergence"
)

// AnomalyEvent is an immutable record of a flagged deviation.
type AnomalyEvent struct {
	SignalKey  string      `json:"signal_key"`
	PairedKey  string      `json:"paired_key,omitempty"` // second signal for divergence
	Kind       AnomalyKind `json:"kind"`
	Severity   float64     `json:"severity"` // [0,1]
	ZScore     float64     `json:"z_score,omitempty"`
	Delta      float64     `json:"delta,omitempty"`    // score change for sentiment shifts
	Polarity   int         `json:"polarity,omitempty"` // +1 up, -1 down
	DetectedAt time.Time   `json:"detected_at"`
}

// DetectorStatus reports the window state behind a detection pass.
type DetectorStatus string

const (
	StatusWarming          DetectorStatus = "warming"
	StatusReady            DetectorStatus = "ready"
	StatusInsufficientData DetectorStatus = "insufficient-data"
)

// HypothesisStatus distinguishes "no correlation" from "not enough to tell".
type HypothesisStatus string

const (
	HypothesisSignificant   HypothesisStatus = "significant"
	HypothesisNoCorrelation HypothesisStatus = "no-correlation"
	HypothesisInconclusive  HypothesisStatus = "inconclusive"
)

// CorrelationHypothesis is the result of a lag scan between an event series
// and a reaction series. Recomputed periodically; supersedes, never mutated.
type CorrelationHypothesis struct {
	EventKey     string           `json:"event_key"`
	ReactionKey  string           `json:"reaction_key"`
	BestLag      time.Duration    `json:"best_lag"`
	BestLagTicks int              `json:"best_lag_ticks"`
	Coefficient  float64          `json:"coefficient"`
	Significance float64          `json:"significance"` // Fisher z statistic
	SampleCount  int              `json:"sample_count"`
	Status       HypothesisStatus `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Cointegrated bool             `json:"cointegrated"`
	ResidualStat float64          `json:"residual_stat,omitempty"` // stationarity proxy on spread residuals
	ComputedAt   time.Time        `json:"computed_at"`
}

// EnsembleResult is the weighted combination of the current score snapshot.
type EnsembleResult struct {
	Timestamp  time.Time          `json:"timestamp"`
	Bias       float64            `json:"bias"`       // [-1,1], bullish positive
	Confidence float64            `json:"confidence"` // weighted fraction of expected signals present
	Components map[string]float64 `json:"components"` // per-signal contribution
	Missing    []string           `json:"missing,omitempty"`
	Reasons    []string           `json:"reasons,omitempty"`
}

// RiskEstimate summarizes a Monte Carlo simulation seeded from a signal's
// rolling statistics.
type RiskEstimate struct {
	SignalKey   string    `json:"signal_key"`
	Timestamp   time.Time `json:"timestamp"`
	HorizonDays int       `json:"horizon_days"`
	Simulations int       `json:"simulations"`
	Confidence  float64   `json:"confidence"`
	VaRPct      float64   `json:"var_pct"`
	VaRAbsolute float64   `json:"var_absolute"`
	Median      float64   `json:"median"`
	RangeLow    float64   `json:"range_low"`  // 5th percentile terminal value
	RangeHigh   float64   `json:"range_high"` // 95th percentile terminal value
}
