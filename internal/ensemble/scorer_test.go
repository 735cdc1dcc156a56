package ensemble

import (
	"math"
	"testing"

	"TrustPulse/internal/domain/models"
	"TrustPulse/internal/registry"
)

func testRegistry(t *testing.T, sigs ...models.Signal) *registry.Registry {
	t.Helper()
	reg, err := registry.NewFromSignals(sigs)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func linearSignal(key, group string, weight float64) models.Signal {
	return models.Signal{
		Key:    key,
		Source: "test",
		Group:  group,
		Weight: weight,
		Calibration: models.Calibration{
			Kind: models.CalibrationLinear,
			Min:  0,
			Max:  100,
		},
	}
}

func score(key string, v float64) models.NormalizedScore {
	return models.NormalizedScore{
		SignalKey: key,
		Score:     v,
		Bucket:    models.BucketFor(v),
	}
}

func TestAggregateBiasAndConfidence(t *testing.T) {
	reg := testRegistry(t,
		linearSignal("price.spot", "market", 0),
		linearSignal("social.mentions", "sentiment", 0),
	)
	s := New(Config{}, reg)

	res := s.Aggregate(map[string]models.NormalizedScore{
		"price.spot":      score("price.spot", 75),
		"social.mentions": score("social.mentions", 25),
	})

	// contributions +0.5 and -0.5 with equal weight cancel
	if math.Abs(res.Bias) > 1e-12 {
		t.Fatalf("expected zero bias, got %v", res.Bias)
	}
	if res.Confidence != 1 {
		t.Fatalf("expected full confidence, got %v", res.Confidence)
	}
	if len(res.Missing) != 0 {
		t.Fatalf("unexpected missing: %v", res.Missing)
	}
	if res.Components["price.spot"] != 0.5 {
		t.Fatalf("component = %v", res.Components["price.spot"])
	}
}

func TestAggregateMissingLowersConfidence(t *testing.T) {
	reg := testRegistry(t,
		linearSignal("price.spot", "market", 0),
		linearSignal("chain.activity", "onchain", 0),
	)
	s := New(Config{}, reg)

	res := s.Aggregate(map[string]models.NormalizedScore{
		"price.spot": score("price.spot", 90),
	})

	if res.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", res.Confidence)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "chain.activity" {
		t.Fatalf("missing = %v", res.Missing)
	}
	// bias is computed over present weight only
	if math.Abs(res.Bias-0.8) > 1e-12 {
		t.Fatalf("bias = %v, want 0.8", res.Bias)
	}
}

func TestAggregateNoDataCountsAsMissing(t *testing.T) {
	reg := testRegistry(t, linearSignal("price.spot", "market", 0))
	s := New(Config{}, reg)

	res := s.Aggregate(map[string]models.NormalizedScore{
		"price.spot": {SignalKey: "price.spot", NoData: true, Bucket: models.BucketNoData},
	})

	if res.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", res.Confidence)
	}
	if res.Bias != 0 {
		t.Fatalf("bias = %v, want 0", res.Bias)
	}
	if len(res.Missing) != 1 {
		t.Fatalf("missing = %v", res.Missing)
	}
}

func TestWeightPrecedence(t *testing.T) {
	reg := testRegistry(t,
		linearSignal("a.override", "market", 5),
		linearSignal("b.grouped", "market", 0),
		linearSignal("c.default", "other", 0),
	)
	s := New(Config{
		GroupWeights:  map[string]float64{"market": 2},
		DefaultWeight: 1,
	}, reg)

	if got := s.weightFor(reg.All()["a.override"]); got != 5 {
		t.Fatalf("signal weight = %v, want 5", got)
	}
	if got := s.weightFor(reg.All()["b.grouped"]); got != 2 {
		t.Fatalf("group weight = %v, want 2", got)
	}
	if got := s.weightFor(reg.All()["c.default"]); got != 1 {
		t.Fatalf("default weight = %v, want 1", got)
	}
}

func TestWeightedBias(t *testing.T) {
	reg := testRegistry(t,
		linearSignal("heavy", "market", 3),
		linearSignal("light", "market", 1),
	)
	s := New(Config{}, reg)

	res := s.Aggregate(map[string]models.NormalizedScore{
		"heavy": score("heavy", 100), // +1
		"light": score("light", 0),   // -1
	})

	// (3·1 + 1·(-1)) / 4 = 0.5
	if math.Abs(res.Bias-0.5) > 1e-12 {
		t.Fatalf("bias = %v, want 0.5", res.Bias)
	}
}

func TestAggregateDeterministicOrder(t *testing.T) {
	reg := testRegistry(t,
		linearSignal("b.second", "market", 0),
		linearSignal("a.first", "market", 0),
	)
	s := New(Config{}, reg)

	scores := map[string]models.NormalizedScore{
		"a.first":  score("a.first", 60),
		"b.second": score("b.second", 40),
	}
	for i := 0; i < 5; i++ {
		res := s.Aggregate(scores)
		if len(res.Reasons) != 2 {
			t.Fatalf("reasons = %v", res.Reasons)
		}
		if res.Reasons[0][:7] != "a.first" {
			t.Fatalf("expected key-sorted reasons, got %v", res.Reasons)
		}
	}
}
