package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"TrustPulse/internal/domain/models"
	"TrustPulse/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.NewFromSignals([]models.Signal{
		{
			Key:         "price.close",
			Calibration: models.Calibration{Kind: models.CalibrationLinear, Min: 0, Max: 200},
		},
		{
			Key:         "chain.activity",
			Calibration: models.Calibration{Kind: models.CalibrationZScore, Mean: 1000, Std: 100},
		},
		{
			Key: "macro.rating",
			Calibration: models.Calibration{
				Kind: models.CalibrationCategorical,
				Table: []models.BucketEntry{
					{Upper: 1, Score: 10},
					{Upper: 2, Score: 50},
					{Upper: 3, Score: 90},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func obs(key string, v float64) *models.Observation {
	return &models.Observation{SignalKey: key, Timestamp: time.Now(), Value: v}
}

func TestNormalizeLinear(t *testing.T) {
	n := New(testRegistry(t))

	s, err := n.Normalize(obs("price.close", 50))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s.Score != 25 {
		t.Fatalf("score = %v, want 25", s.Score)
	}
	if s.Bucket != models.BucketBearish {
		t.Fatalf("bucket = %v", s.Bucket)
	}

	// out of calibration range clamps instead of overflowing
	s, _ = n.Normalize(obs("price.close", 10_000))
	if s.Score != 100 {
		t.Fatalf("score = %v, want clamped 100", s.Score)
	}
	s, _ = n.Normalize(obs("price.close", -5))
	if s.Score != 0 {
		t.Fatalf("score = %v, want clamped 0", s.Score)
	}
}

func TestNormalizeZScore(t *testing.T) {
	n := New(testRegistry(t))

	// at the mean: exactly the middle of the scale
	s, err := n.Normalize(obs("chain.activity", 1000))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if math.Abs(s.Score-50) > 1e-9 {
		t.Fatalf("score at mean = %v, want 50", s.Score)
	}

	// one deviation up lands at the normal CDF of 1
	s, _ = n.Normalize(obs("chain.activity", 1100))
	want := 100 * 0.5 * (1 + math.Erf(1/math.Sqrt2))
	if math.Abs(s.Score-want) > 1e-9 {
		t.Fatalf("score = %v, want %v", s.Score, want)
	}
	if s.Bucket != models.BucketExtremeBullish {
		t.Fatalf("bucket = %v", s.Bucket)
	}
}

func TestNormalizeCategorical(t *testing.T) {
	n := New(testRegistry(t))

	cases := []struct {
		v    float64
		want float64
	}{
		{0.5, 10},
		{1, 10},
		{1.5, 50},
		{3, 90},
		{99, 90}, // above last bucket keeps the top score
	}
	for _, tc := range cases {
		s, err := n.Normalize(obs("macro.rating", tc.v))
		if err != nil {
			t.Fatalf("normalize %v: %v", tc.v, err)
		}
		if s.Score != tc.want {
			t.Fatalf("score(%v) = %v, want %v", tc.v, s.Score, tc.want)
		}
	}
}

func TestNormalizeNonFiniteIsNoData(t *testing.T) {
	n := New(testRegistry(t))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		s, err := n.Normalize(obs("price.close", v))
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if !s.NoData || s.Bucket != models.BucketNoData {
			t.Fatalf("non-finite value scored: %+v", s)
		}
		if s.Score != 0 {
			t.Fatalf("no-data carries score %v", s.Score)
		}
	}
}

func TestNormalizeUnregisteredKey(t *testing.T) {
	n := New(testRegistry(t))
	_, err := n.Normalize(obs("unknown.key", 1))
	if !errors.Is(err, registry.ErrUnregisteredSignal) {
		t.Fatalf("err = %v, want ErrUnregisteredSignal", err)
	}
}

func TestBucketBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  models.Bucket
	}{
		{0, models.BucketExtremeBearish},
		{19.999, models.BucketExtremeBearish},
		{20, models.BucketBearish},
		{40, models.BucketNeutral},
		{60, models.BucketBullish},
		{80, models.BucketExtremeBullish},
		{100, models.BucketExtremeBullish},
	}
	for _, tc := range cases {
		if got := models.BucketFor(tc.score); got != tc.want {
			t.Fatalf("BucketFor(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
