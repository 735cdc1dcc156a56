package registry

import (
	"errors"
	"testing"

	"TrustPulse/internal/domain/models"
)

func linearSignal(key string) models.Signal {
	return models.Signal{
		Key:         key,
		Calibration: models.Calibration{Kind: models.CalibrationLinear, Min: 0, Max: 100},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	if err := r.Register(linearSignal("price.close")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.Has("price.close") {
		t.Fatal("Has = false")
	}
	s, err := r.Lookup("price.close")
	if err != nil || s.Key != "price.close" {
		t.Fatalf("lookup: %v %v", s, err)
	}
	if _, err := r.Lookup("nope"); !errors.Is(err, ErrUnregisteredSignal) {
		t.Fatalf("err = %v, want ErrUnregisteredSignal", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	if err := r.Register(linearSignal("a")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(linearSignal("a")); !errors.Is(err, ErrDuplicateSignal) {
		t.Fatalf("err = %v, want ErrDuplicateSignal", err)
	}
}

func TestValidateCalibration(t *testing.T) {
	cases := []struct {
		name string
		cal  models.Calibration
		ok   bool
	}{
		{"linear ok", models.Calibration{Kind: models.CalibrationLinear, Min: 0, Max: 1}, true},
		{"linear inverted", models.Calibration{Kind: models.CalibrationLinear, Min: 1, Max: 1}, false},
		{"zscore ok", models.Calibration{Kind: models.CalibrationZScore, Mean: 0, Std: 1}, true},
		{"zscore zero std", models.Calibration{Kind: models.CalibrationZScore, Mean: 0, Std: 0}, false},
		{"categorical ok", models.Calibration{Kind: models.CalibrationCategorical, Table: []models.BucketEntry{{Upper: 1, Score: 10}, {Upper: 2, Score: 90}}}, true},
		{"categorical empty", models.Calibration{Kind: models.CalibrationCategorical}, false},
		{"categorical unsorted", models.Calibration{Kind: models.CalibrationCategorical, Table: []models.BucketEntry{{Upper: 2, Score: 10}, {Upper: 1, Score: 90}}}, false},
		{"unknown kind", models.Calibration{Kind: "fancy"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateCalibration(tc.cal)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidCalibration) {
				t.Fatalf("err = %v, want ErrInvalidCalibration", err)
			}
		})
	}
}

func TestNewFromSignalsFailsFast(t *testing.T) {
	_, err := NewFromSignals([]models.Signal{
		linearSignal("ok"),
		{Key: "bad", Calibration: models.Calibration{Kind: models.CalibrationZScore}},
	})
	if !errors.Is(err, ErrInvalidCalibration) {
		t.Fatalf("err = %v, want ErrInvalidCalibration", err)
	}
}

func TestKeysStableOrder(t *testing.T) {
	r := New()
	for _, k := range []string{"c", "a", "b"} {
		if err := r.Register(linearSignal(k)); err != nil {
			t.Fatalf("register %s: %v", k, err)
		}
	}
	keys := r.Keys()
	want := []string{"a", "b", "c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestPresetCalibration(t *testing.T) {
	cal, err := PresetCalibration("rsi")
	if err != nil {
		t.Fatalf("rsi preset: %v", err)
	}
	if cal.Kind != models.CalibrationLinear || cal.Max != 100 {
		t.Fatalf("rsi preset = %+v", cal)
	}

	if _, err := PresetCalibration("nope"); !errors.Is(err, ErrInvalidCalibration) {
		t.Fatalf("err = %v, want ErrInvalidCalibration", err)
	}

	// every shipped preset must itself pass registration
	for name := range calibrationPresets {
		cal, err := PresetCalibration(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := validateCalibration(cal); err != nil {
			t.Fatalf("preset %s invalid: %v", name, err)
		}
	}
}
