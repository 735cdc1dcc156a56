package registry

import (
	"fmt"

	"TrustPulse/internal/domain/models"
)

// Calibration presets for common indicator families, so config can name a
// preset instead of spelling the bounds out per signal.
var calibrationPresets = map[string]models.Calibration{
	"rsi": {
		Kind: models.CalibrationLinear,
		Min:  0,
		Max:  100,
	},
	"percent": {
		Kind: models.CalibrationLinear,
		Min:  -100,
		Max:  100,
	},
	"macd-histogram": {
		Kind: models.CalibrationZScore,
		Mean: 0,
		Std:  1,
	},
	"sentiment-buckets": {
		Kind: models.CalibrationCategorical,
		Table: []models.BucketEntry{
			{Upper: -0.6, Score: 10},
			{Upper: -0.2, Score: 30},
			{Upper: 0.2, Score: 50},
			{Upper: 0.6, Score: 70},
			{Upper: 1.0, Score: 90},
		},
	},
}

// PresetCalibration resolves a named calibration preset.
func PresetCalibration(name string) (models.Calibration, error) {
	cal, ok := calibrationPresets[name]
	if !ok {
		return models.Calibration{}, fmt.Errorf("%w: unknown calibration preset %q", ErrInvalidCalibration, name)
	}
	return cal, nil
}
