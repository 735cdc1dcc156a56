package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"TrustPulse/internal/alerts"
	"TrustPulse/internal/anomaly"
	"TrustPulse/internal/correlation"
	"TrustPulse/internal/domain/models"
	"TrustPulse/internal/ensemble"
	"TrustPulse/internal/normalize"
	"TrustPulse/internal/registry"
	"TrustPulse/internal/risk"
	"TrustPulse/pkg/logger"
	"TrustPulse/pkg/metrics"
)

func testSignals() []models.Signal {
	linear := models.Calibration{Kind: models.CalibrationLinear, Min: 0, Max: 100}
	return []models.Signal{
		{Key: "price.spot", Source: "test", Role: models.RolePrice, Group: "market", Calibration: linear},
		{Key: "social.mentions", Source: "test", Role: models.RoleSentiment, Group: "sentiment", Calibration: linear},
		{Key: "chain.activity", Source: "test", Role: models.RoleOnChain, Group: "onchain", Calibration: linear},
	}
}

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()

	reg, err := registry.NewFromSignals(testSignals())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	cfg := Config{
		Shards:              4,
		QueueSize:           64,
		TickInterval:        time.Hour, // ticks driven manually
		CorrelationInterval: time.Hour,
		CorrelationTimeout:  5 * time.Second,
		SeriesCapacity:      128,
		Detector: anomaly.Config{
			WindowCapacity: 16,
			WarmupSize:     4,
			ZCutoff:        2,
		},
		Tick: anomaly.TickConfig{
			SentimentShiftRate:  15,
			DivergenceMagnitude: 10,
			DivergencePairs:     [][2]string{{"price.spot", "social.mentions"}},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	mgr := alerts.NewManager(alerts.Config{}, metrics.Noop{}, nil)
	eng, err := New(cfg, reg,
		normalize.New(reg),
		correlation.New(correlation.Config{MaxLag: 3, MinSamples: 20, TickInterval: time.Minute}),
		ensemble.New(ensemble.Config{}, reg),
		risk.New(risk.Config{Simulations: 500, Seed: 42}),
		mgr, metrics.Noop{}, nil, lgr)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng.Start(ctx)
	t.Cleanup(func() {
		cancel()
		eng.Stop()
	})
	return eng
}

func obs(key string, v float64) *models.Observation {
	return &models.Observation{
		SignalKey: key,
		Value:     v,
		Timestamp: time.Now(),
		Producer:  "test",
	}
}

func submit(t *testing.T, e *Engine, key string, v float64) {
	t.Helper()
	if err := e.Submit(context.Background(), obs(key, v)); err != nil {
		t.Fatalf("submit %s: %v", key, err)
	}
}

func TestSubmitRejectsUnregisteredKey(t *testing.T) {
	e := newTestEngine(t, nil)
	err := e.Submit(context.Background(), obs("nope.unknown", 1))
	if !errors.Is(err, registry.ErrUnregisteredSignal) {
		t.Fatalf("err = %v, want ErrUnregisteredSignal", err)
	}
}

func TestSubmitRejectsZeroTimestamp(t *testing.T) {
	e := newTestEngine(t, nil)
	err := e.Submit(context.Background(), &models.Observation{SignalKey: "price.spot", Value: 1})
	if err == nil {
		t.Fatalf("expected error for zero timestamp")
	}
}

func TestScoreVisibleAfterTick(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	submit(t, e, "price.spot", 75)
	e.runTick(ctx, time.Now())

	sc, ok, err := e.LatestScore("price.spot")
	if err != nil || !ok {
		t.Fatalf("score: ok=%v err=%v", ok, err)
	}
	if sc.Score != 75 {
		t.Fatalf("score = %v, want 75", sc.Score)
	}
	if sc.Bucket != models.BucketBullish {
		t.Fatalf("bucket = %s", sc.Bucket)
	}

	if _, _, err := e.LatestScore("nope.unknown"); !errors.Is(err, registry.ErrUnregisteredSignal) {
		t.Fatalf("err = %v, want ErrUnregisteredSignal", err)
	}
	if _, ok, err := e.LatestScore("chain.activity"); err != nil || ok {
		t.Fatalf("expected no data for untouched key, ok=%v err=%v", ok, err)
	}
}

func TestWatchlistAndEnsemble(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	submit(t, e, "price.spot", 80)
	submit(t, e, "social.mentions", 40)
	e.runTick(ctx, time.Now())

	wl := e.Watchlist("")
	if len(wl) != 3 {
		t.Fatalf("watchlist = %d entries, want 3", len(wl))
	}
	if wl[0].Signal.Key != "chain.activity" {
		t.Fatalf("expected key-sorted watchlist, got %s first", wl[0].Signal.Key)
	}
	if wl[0].Score != nil {
		t.Fatalf("expected nil score for untouched key")
	}

	market := e.Watchlist("market")
	if len(market) != 1 || market[0].Signal.Key != "price.spot" {
		t.Fatalf("group filter broken: %+v", market)
	}

	res := e.Ensemble()
	// contributions +0.6 and -0.2, chain.activity missing
	if math.Abs(res.Bias-0.2) > 1e-9 {
		t.Fatalf("bias = %v, want 0.2", res.Bias)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "chain.activity" {
		t.Fatalf("missing = %v", res.Missing)
	}
}

func TestVolumeSpikeThroughShard(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for _, v := range []float64{90, 110, 90, 110} {
		submit(t, e, "price.spot", v)
	}
	submit(t, e, "price.spot", 200)
	e.runTick(ctx, time.Now())

	events := e.RecentAnomalies("price.spot", 10)
	if len(events) == 0 {
		t.Fatalf("expected a volume spike event")
	}
	if events[0].Kind != models.AnomalyVolumeSpike {
		t.Fatalf("kind = %s", events[0].Kind)
	}
	if events[0].Severity <= 0 {
		t.Fatalf("severity = %v", events[0].Severity)
	}

	open := e.Alerts("")
	if len(open) != 1 {
		t.Fatalf("alerts = %d, want 1", len(open))
	}
	if open[0].Kind != string(models.AnomalyVolumeSpike) {
		t.Fatalf("alert kind = %s", open[0].Kind)
	}
}

func TestDivergenceAndSentimentShiftOnTick(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	submit(t, e, "price.spot", 50)
	submit(t, e, "social.mentions", 50)
	e.runTick(ctx, time.Now())

	submit(t, e, "price.spot", 65)
	submit(t, e, "social.mentions", 35)
	e.runTick(ctx, time.Now())

	kinds := map[models.AnomalyKind]bool{}
	for _, ev := range e.RecentAnomalies("", 10) {
		kinds[ev.Kind] = true
	}
	if !kinds[models.AnomalyDivergence] {
		t.Fatalf("expected divergence, got %v", kinds)
	}
	if !kinds[models.AnomalySentimentShift] {
		t.Fatalf("expected sentiment shift, got %v", kinds)
	}

	// paired key matches either side of the divergence
	if got := e.RecentAnomalies("social.mentions", 10); len(got) < 2 {
		t.Fatalf("expected paired-key filter to include divergence, got %d", len(got))
	}
}

func TestCorrelationPassFindsCoupledPair(t *testing.T) {
	e := newTestEngine(t, func(cfg *Config) {
		cfg.CorrelationPairs = [][2]string{{"social.mentions", "price.spot"}}
	})
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 25; i++ {
		v := 50 + 40*math.Sin(float64(i)*0.7)
		submit(t, e, "social.mentions", v)
		submit(t, e, "price.spot", v)
		now = now.Add(time.Minute)
		e.runTick(ctx, now)
	}
	e.runCorrelationPass(ctx)

	h, ok := e.Hypothesis("social.mentions", "price.spot")
	if !ok {
		t.Fatalf("expected a hypothesis")
	}
	if h.Status != models.HypothesisSignificant {
		t.Fatalf("status = %s reason = %s", h.Status, h.Reason)
	}
	if h.BestLagTicks != 0 {
		t.Fatalf("lag = %d, want 0", h.BestLagTicks)
	}
	if math.Abs(h.Coefficient-1) > 1e-9 {
		t.Fatalf("r = %v, want 1", h.Coefficient)
	}

	all := e.Hypotheses()
	if len(all) != 1 || all[0].EventKey != "social.mentions" {
		t.Fatalf("hypotheses = %+v", all)
	}
}

func TestCorrelationPassInsufficientData(t *testing.T) {
	e := newTestEngine(t, func(cfg *Config) {
		cfg.CorrelationPairs = [][2]string{{"social.mentions", "price.spot"}}
	})
	ctx := context.Background()

	submit(t, e, "social.mentions", 60)
	submit(t, e, "price.spot", 55)
	e.runTick(ctx, time.Now())
	e.runCorrelationPass(ctx)

	h, ok := e.Hypothesis("social.mentions", "price.spot")
	if !ok {
		t.Fatalf("expected a hypothesis")
	}
	if h.Status != models.HypothesisInconclusive || h.Reason != "insufficient samples" {
		t.Fatalf("status = %s reason = %s", h.Status, h.Reason)
	}
}

func TestRiskRequiresWarmWindow(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	submit(t, e, "price.spot", 50)
	e.runTick(ctx, time.Now())

	if _, err := e.Risk(ctx, "price.spot", 30, 0.95); err == nil {
		t.Fatalf("expected error while warming")
	}

	for _, v := range []float64{48, 52, 49, 51} {
		submit(t, e, "price.spot", v)
	}
	e.runTick(ctx, time.Now())

	est, err := e.Risk(ctx, "price.spot", 30, 0.95)
	if err != nil {
		t.Fatalf("risk: %v", err)
	}
	if est.SignalKey != "price.spot" || est.Simulations != 500 {
		t.Fatalf("estimate = %+v", est)
	}
	if est.VaRPct >= 0 {
		t.Fatalf("VaR pct = %v, want negative", est.VaRPct)
	}

	if _, err := e.Risk(ctx, "nope.unknown", 30, 0.95); !errors.Is(err, registry.ErrUnregisteredSignal) {
		t.Fatalf("err = %v, want ErrUnregisteredSignal", err)
	}
}

func TestRejectNewBackpressure(t *testing.T) {
	reg, err := registry.NewFromSignals(testSignals())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	mgr := alerts.NewManager(alerts.Config{}, metrics.Noop{}, nil)

	// single shard with a one-slot queue, never started, so the queue fills
	eng, err := New(Config{Shards: 1, QueueSize: 1, Backpressure: RejectNew}, reg,
		normalize.New(reg), correlation.New(correlation.Config{}),
		ensemble.New(ensemble.Config{}, reg), risk.New(risk.Config{Seed: 1}),
		mgr, metrics.Noop{}, nil, lgr)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	ctx := context.Background()
	if err := eng.Submit(ctx, obs("price.spot", 1)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err = eng.Submit(ctx, obs("price.spot", 2))
	if !errors.Is(err, ErrBackpressure) {
		t.Fatalf("err = %v, want ErrBackpressure", err)
	}
}

func TestDropOldestBackpressure(t *testing.T) {
	reg, err := registry.NewFromSignals(testSignals())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	mgr := alerts.NewManager(alerts.Config{}, metrics.Noop{}, nil)

	eng, err := New(Config{Shards: 1, QueueSize: 1, Backpressure: DropOldest}, reg,
		normalize.New(reg), correlation.New(correlation.Config{}),
		ensemble.New(ensemble.Config{}, reg), risk.New(risk.Config{Seed: 1}),
		mgr, metrics.Noop{}, nil, lgr)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	ctx := context.Background()
	if err := eng.Submit(ctx, obs("price.spot", 1)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := eng.Submit(ctx, obs("price.spot", 2)); err != nil {
		t.Fatalf("second submit should displace the oldest: %v", err)
	}
}

func TestDropOldestAcksStolenBarrier(t *testing.T) {
	reg, err := registry.NewFromSignals(testSignals())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	lgr, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	mgr := alerts.NewManager(alerts.Config{}, metrics.Noop{}, nil)

	eng, err := New(Config{Shards: 1, QueueSize: 1, Backpressure: DropOldest}, reg,
		normalize.New(reg), correlation.New(correlation.Config{}),
		ensemble.New(ensemble.Config{}, reg), risk.New(risk.Config{Seed: 1}),
		mgr, metrics.Noop{}, nil, lgr)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	// a pending barrier fills the one-slot queue; displacing it must still
	// release anyone waiting on its ack
	ack := make(chan struct{})
	eng.shards[0].queue <- shardMsg{barrier: ack}

	if err := eng.Submit(context.Background(), obs("price.spot", 1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-ack:
	default:
		t.Fatalf("displaced barrier was never acknowledged")
	}
}

func TestStopReturnsWithLiveContext(t *testing.T) {
	e := newTestEngine(t, nil)
	submit(t, e, "price.spot", 50)

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return while the run context was still live")
	}
}

func TestNewRejectsUnknownPairKeys(t *testing.T) {
	reg, err := registry.NewFromSignals(testSignals())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	lgr, _ := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	mgr := alerts.NewManager(alerts.Config{}, metrics.Noop{}, nil)

	_, err = New(Config{CorrelationPairs: [][2]string{{"price.spot", "nope.unknown"}}}, reg,
		normalize.New(reg), correlation.New(correlation.Config{}),
		ensemble.New(ensemble.Config{}, reg), risk.New(risk.Config{Seed: 1}),
		mgr, metrics.Noop{}, nil, lgr)
	if err == nil {
		t.Fatalf("expected error for unregistered pair key")
	}
}
