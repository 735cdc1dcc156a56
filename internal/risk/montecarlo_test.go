package risk

import (
	"context"
	"testing"
)

func TestEstimateDeterministicWithSeed(t *testing.T) {
	m := New(Config{Simulations: 1000, Seed: 7})
	ctx := context.Background()

	a, err := m.Estimate(ctx, "price.spot", 100, 100, 5, 30, 0.95)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	b, err := m.Estimate(ctx, "price.spot", 100, 100, 5, 30, 0.95)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if a.VaRPct != b.VaRPct || a.Median != b.Median {
		t.Fatalf("same seed should reproduce: %v vs %v", a.VaRPct, b.VaRPct)
	}
}

func TestEstimateShape(t *testing.T) {
	m := New(Config{Simulations: 2000, Seed: 3})
	est, err := m.Estimate(context.Background(), "price.spot", 100, 100, 10, 30, 0.95)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}

	if est.SignalKey != "price.spot" {
		t.Fatalf("key = %s", est.SignalKey)
	}
	if est.HorizonDays != 30 || est.Simulations != 2000 || est.Confidence != 0.95 {
		t.Fatalf("estimate = %+v", est)
	}
	if est.VaRPct >= 0 {
		t.Fatalf("VaR pct = %v, want loss", est.VaRPct)
	}
	if diff := est.VaRAbsolute - est.VaRPct*100; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("absolute/relative mismatch: %v vs %v", est.VaRAbsolute, est.VaRPct)
	}
	if est.RangeLow >= est.Median || est.Median >= est.RangeHigh {
		t.Fatalf("range out of order: %v %v %v", est.RangeLow, est.Median, est.RangeHigh)
	}
	if est.RangeLow <= 0 {
		t.Fatalf("terminal values must stay positive, got %v", est.RangeLow)
	}
}

func TestEstimateVaRWidensWithVolatility(t *testing.T) {
	m := New(Config{Simulations: 2000, Seed: 11})
	ctx := context.Background()

	calm, err := m.Estimate(ctx, "price.spot", 100, 100, 2, 30, 0.95)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	wild, err := m.Estimate(ctx, "price.spot", 100, 100, 20, 30, 0.95)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if wild.VaRPct >= calm.VaRPct {
		t.Fatalf("higher volatility should deepen VaR: calm %v wild %v", calm.VaRPct, wild.VaRPct)
	}
}

func TestEstimateDefaultsAndErrors(t *testing.T) {
	m := New(Config{Simulations: 100, Seed: 1})
	ctx := context.Background()

	if _, err := m.Estimate(ctx, "price.spot", 0, 100, 5, 30, 0.95); err == nil {
		t.Fatalf("expected error for non-positive last value")
	}

	est, err := m.Estimate(ctx, "price.spot", 100, 100, 5, 0, 2)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.HorizonDays != 30 {
		t.Fatalf("horizon = %d, want default 30", est.HorizonDays)
	}
	if est.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want default 0.95", est.Confidence)
	}
}

func TestEstimateHonorsCancellation(t *testing.T) {
	m := New(Config{Simulations: 5000, Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Estimate(ctx, "price.spot", 100, 100, 5, 30, 0.95); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
