package models

import "time"

// CalibrationKind selects the strategy that maps raw values onto [0,100].
type CalibrationKind string

const (
	CalibrationLinear      CalibrationKind = "linear"      // min-max scaling for bounded indicators
	CalibrationZScore      CalibrationKind = "zscore"      // z-score to percentile for unbounded indicators
	CalibrationCategorical CalibrationKind = "categorical" // explicit bucket table
)

// SignalRole classifies what a signal measures; the divergence pass and the
// sentiment-shift rule only look at certain roles.
type SignalRole string

const (
	RolePrice     SignalRole = "price"
	RoleSentiment SignalRole = "sentiment"
	RoleMacro     SignalRole = "macro"
	RoleOnChain   SignalRole = "onchain"
	RoleVolume    SignalRole = "volume"
)

// BucketEntry maps raw values up to (and including) Upper onto a fixed score.
type BucketEntry struct {
	Upper float64 `yaml:"upper" json:"upper"`
	Score float64 `yaml:"score" json:"score"`
}

// Calibration holds the per-signal parameters used by the normalizer.
type Calibration struct {
	Kind  CalibrationKind `yaml:"kind" json:"kind"`
	Min   float64         `yaml:"min" json:"min"`     // linear lower bound
	Max   float64         `yaml:"max" json:"max"`     // linear upper bound
	Mean  float64         `yaml:"mean" json:"mean"`   // zscore reference mean
	Std   float64         `yaml:"std" json:"std"`     // zscore reference deviation
	Table []BucketEntry   `yaml:"table" json:"table"` // categorical bucket table, ascending Upper
}

// Signal is a registered time-series source. Immutable once registered.
type Signal struct {
	Key         string      `yaml:"key" json:"key"`
	Source      string      `yaml:"source" json:"source"`
	Instrument  string      `yaml:"instrument" json:"instrument"`
	Role        SignalRole  `yaml:"role" json:"role"`
	Unit        string      `yaml:"unit" json:"unit"`
	Group       string      `yaml:"group" json:"group"`   // ensemble weight group
	Weight      float64     `yaml:"weight" json:"weight"` // per-signal override, 0 = use group weight
	Calibration Calibration `yaml:"calibration" json:"calibration"`
}

// QualityFlag marks degraded observations.
type QualityFlag string

const (
	QualityOK      QualityFlag = ""
	QualityStale   QualityFlag = "stale"
	QualityPartial QualityFlag = "partial"
)

// Observation is one timestamped raw data point for a signal.
type Observation struct {
	SignalKey string      `json:"signal_key"`
	Timestamp time.Time   `json:"timestamp"`
	Value     float64     `json:"value"`
	Quality   QualityFlag `json:"quality,omitempty"`
	Producer  string      `json:"producer,omitempty"` // logical source stream
}

// Bucket is one of the five score bands.
type Bucket string

const (
	BucketExtremeBearish Bucket = "extreme-bearish"
	BucketBearish        Bucket = "bearish"
	BucketNeutral        Bucket = "neutral"
	BucketBullish        Bucket = "bullish"
	BucketExtremeBullish Bucket = "extreme-bullish"
	BucketNoData         Bucket = "no-data"
)

// BucketFor maps a score onto its band. Boundaries are inclusive on the
// lower edge: [0,20) [20,40) [40,60) [60,80) [80,100].
func BucketFor(score float64) Bucket {
	switch {
	case score < 20:
		return BucketExtremeBearish
	case score < 40:
		return BucketBearish
	case score < 60:
		return BucketNeutral
	case score < 80:
		return BucketBullish
	default:
		return BucketExtremeBullish
	}
}

// NormalizedScore is a signal's value mapped onto the common 0-100 scale.
// Derived, never mutated; newer scores for the same key supersede it.
type NormalizedScore struct {
	SignalKey string      `json:"signal_key"`
	Timestamp time.Time   `json:"timestamp"`
	Score     float64     `json:"score"`
	Bucket    Bucket      `json:"bucket"`
	NoData    bool        `json:"no_data,omitempty"`
	Quality   QualityFlag `json:"quality,omitempty"`
}
