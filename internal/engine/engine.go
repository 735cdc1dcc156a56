package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"TrustPulse/internal/alerts"
	"TrustPulse/internal/anomaly"
	"TrustPulse/internal/domain/models"
	drepo "TrustPulse/internal/domain/repository"
	domsvc "TrustPulse/internal/domain/service"
	"TrustPulse/internal/registry"
	xlogger "TrustPulse/pkg/logger"
)

// BackpressurePolicy decides what happens when a shard queue is full.
type BackpressurePolicy string

const (
	DropOldest BackpressurePolicy = "drop-oldest"
	RejectNew  BackpressurePolicy = "reject-new"
)

// ErrBackpressure is returned under the reject-new policy when a shard
// queue is full. Producers decide whether to retry or drop.
var ErrBackpressure = errors.New("ingest queue full")

type Config struct {
	Shards              int
	QueueSize           int
	Backpressure        BackpressurePolicy
	TickInterval        time.Duration
	CorrelationInterval time.Duration
	CorrelationTimeout  time.Duration
	SeriesCapacity      int // tick-aligned score history kept per key
	CorrelationPairs    [][2]string

	Detector anomaly.Config
	Tick     anomaly.TickConfig
}

func (c *Config) normalize() {
	if c.Shards <= 0 {
		c.Shards = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Backpressure != RejectNew {
		c.Backpressure = DropOldest
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 10 * time.Second
	}
	if c.CorrelationInterval <= 0 {
		c.CorrelationInterval = time.Minute
	}
	if c.CorrelationTimeout <= 0 {
		c.CorrelationTimeout = 5 * time.Second
	}
	if c.SeriesCapacity <= 0 {
		c.SeriesCapacity = 512
	}
}

// keyStats is the per-key window summary published to the snapshot so
// queries never touch shard-owned windows directly.
type keyStats struct {
	last   float64
	mean   float64
	stddev float64
	count  int
	status models.DetectorStatus
}

// Engine wires ingress, normalization, detection, correlation, alerting and
// the ensemble into one pipeline. Observations are sharded by signal key:
// one goroutine per shard serializes all updates for its keys, while
// cross-key passes run on the evaluation tick behind a barrier.
type Engine struct {
	cfg        Config
	reg        *registry.Registry
	normalizer domsvc.Normalizer
	correlator domsvc.Correlator
	scorer     domsvc.EnsembleScorer
	riskEst    domsvc.RiskEstimator
	alertMgr   *alerts.Manager
	metrics    drepo.Metrics
	history    drepo.HistoryStore
	logger     *xlogger.Logger

	shards []*shard

	mu        sync.RWMutex
	latest    map[string]models.NormalizedScore
	stats     map[string]keyStats
	prevTick  map[string]models.NormalizedScore
	series    map[string]*anomaly.RollingWindow // tick-aligned score series
	ensemble  models.EnsembleResult
	hypos     map[string]models.CorrelationHypothesis
	anomalies []models.AnomalyEvent // recent ring for the query surface

	tick *anomaly.TickAnalyzer

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

func New(
	cfg Config,
	reg *registry.Registry,
	normalizer domsvc.Normalizer,
	correlator domsvc.Correlator,
	scorer domsvc.EnsembleScorer,
	riskEst domsvc.RiskEstimator,
	alertMgr *alerts.Manager,
	metrics drepo.Metrics,
	history drepo.HistoryStore,
	logger *xlogger.Logger,
) (*Engine, error) {
	cfg.normalize()
	if reg == nil {
		return nil, fmt.Errorf("engine: nil registry")
	}
	for _, pair := range cfg.CorrelationPairs {
		if !reg.Has(pair[0]) || !reg.Has(pair[1]) {
			return nil, fmt.Errorf("engine: correlation pair %s/%s references unregistered signal", pair[0], pair[1])
		}
	}
	for _, pair := range cfg.Tick.DivergencePairs {
		if !reg.Has(pair[0]) || !reg.Has(pair[1]) {
			return nil, fmt.Errorf("engine: divergence pair %s/%s references unregistered signal", pair[0], pair[1])
		}
	}

	e := &Engine{
		cfg:        cfg,
		reg:        reg,
		normalizer: normalizer,
		correlator: correlator,
		scorer:     scorer,
		riskEst:    riskEst,
		alertMgr:   alertMgr,
		metrics:    metrics,
		history:    history,
		logger:     logger,
		latest:     make(map[string]models.NormalizedScore),
		stats:      make(map[string]keyStats),
		prevTick:   make(map[string]models.NormalizedScore),
		series:     make(map[string]*anomaly.RollingWindow),
		hypos:      make(map[string]models.CorrelationHypothesis),
		stopCh:     make(chan struct{}),
	}
	e.tick = anomaly.NewTickAnalyzer(cfg.Tick, reg.All())

	e.shards = make([]*shard, cfg.Shards)
	for i := range e.shards {
		e.shards[i] = newShard(i, cfg.QueueSize, e)
	}
	return e, nil
}

// Start launches shard workers and the scheduled passes.
func (e *Engine) Start(ctx context.Context) {
	for _, s := range e.shards {
		s := s
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			s.run(ctx)
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.tickLoop(ctx)
	}()

	if len(e.cfg.CorrelationPairs) > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.correlationLoop(ctx)
		}()
	}
}

// Stop signals background loops and waits for them.
func (e *Engine) Stop() {
	e.stopped.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// Submit validates and routes one observation. Unregistered keys fail fast;
// a full shard queue is handled per the configured backpressure policy.
func (e *Engine) Submit(ctx context.Context, obs *models.Observation) error {
	if obs == nil {
		return fmt.Errorf("submit: nil observation")
	}
	if !e.reg.Has(obs.SignalKey) {
		return fmt.Errorf("submit: %w: %s", registry.ErrUnregisteredSignal, obs.SignalKey)
	}
	if obs.Timestamp.IsZero() {
		return fmt.Errorf("submit: observation for %s has no timestamp", obs.SignalKey)
	}
	e.metrics.RecordObservation(obs.Producer, obs.SignalKey)

	s := e.shardFor(obs.SignalKey)
	msg := shardMsg{obs: obs}
	select {
	case s.queue <- msg:
		return nil
	default:
	}

	switch e.cfg.Backpressure {
	case RejectNew:
		e.metrics.RecordError("backpressure_reject")
		return fmt.Errorf("submit %s: %w", obs.SignalKey, ErrBackpressure)
	default: // drop-oldest
		select {
		case victim := <-s.queue:
			if victim.barrier != nil {
				// a stolen tick barrier must still be acknowledged
				close(victim.barrier)
			} else {
				e.metrics.RecordError("backpressure_drop_oldest")
			}
		default:
		}
		select {
		case s.queue <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return e.shards[int(h.Sum32())%len(e.shards)]
}

func (e *Engine) updateSnapshot(score models.NormalizedScore, st keyStats) {
	e.mu.Lock()
	e.latest[score.SignalKey] = score
	e.stats[score.SignalKey] = st
	e.mu.Unlock()
}

// tickLoop runs the cross-key pass on a fixed interval: barrier, divergence
// and sentiment-shift evaluation, series append, ensemble refresh, alert
// sweep.
func (e *Engine) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			e.runTick(ctx, now)
		}
	}
}

// runTick is also invoked directly by tests to avoid timer coupling.
func (e *Engine) runTick(ctx context.Context, now time.Time) {
	start := time.Now()
	e.barrier(ctx)

	e.mu.Lock()
	cur := make(map[string]models.NormalizedScore, len(e.latest))
	for k, v := range e.latest {
		cur[k] = v
	}
	prev := e.prevTick
	e.prevTick = cur
	for k, v := range cur {
		if v.NoData {
			continue
		}
		w, ok := e.series[k]
		if !ok {
			w = anomaly.NewRollingWindow(e.cfg.SeriesCapacity)
			e.series[k] = w
		}
		w.Append(now, v.Score)
	}
	e.mu.Unlock()

	events := e.tick.Evaluate(now, prev, cur)
	for _, ev := range events {
		e.metrics.RecordAnomaly(string(ev.Kind))
		e.alertMgr.OnAnomaly(ctx, ev)
		e.recordAnomaly(ev)
	}

	res := e.scorer.Aggregate(cur)
	e.mu.Lock()
	e.ensemble = res
	e.mu.Unlock()

	e.alertMgr.Sweep(ctx, now)
	e.metrics.RecordLatency("tick", time.Since(start).Seconds())
}

// barrier waits until every shard has drained all messages queued before
// the tick, so the snapshot never sees a partially-updated window.
func (e *Engine) barrier(ctx context.Context) {
	acks := make([]chan struct{}, len(e.shards))
	for i, s := range e.shards {
		ack := make(chan struct{})
		acks[i] = ack
		select {
		case s.queue <- shardMsg{barrier: ack}:
		case <-ctx.Done():
			close(ack)
		case <-e.stopCh:
			close(ack)
		}
	}
	for _, ack := range acks {
		select {
		case <-ack:
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		}
	}
}

// correlationLoop periodically rescans the configured pairs. Each scan is
// time-boxed: a deadline yields an inconclusive hypothesis and the pair is
// retried on the next cycle.
func (e *Engine) correlationLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CorrelationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.runCorrelationPass(ctx)
		}
	}
}

func (e *Engine) runCorrelationPass(ctx context.Context) {
	start := time.Now()
	for _, pair := range e.cfg.CorrelationPairs {
		eventKey, reactionKey := pair[0], pair[1]

		e.mu.RLock()
		var event, reaction []float64
		if w, ok := e.series[eventKey]; ok {
			event = w.Values()
		}
		if w, ok := e.series[reactionKey]; ok {
			reaction = w.Values()
		}
		e.mu.RUnlock()

		cctx, cancel := context.WithTimeout(ctx, e.cfg.CorrelationTimeout)
		h := e.correlator.Correlate(cctx, event, reaction, 0)
		cancel()

		h.EventKey = eventKey
		h.ReactionKey = reactionKey
		if h.Status == models.HypothesisInconclusive && h.Reason == "timeout" {
			e.metrics.RecordError("correlation_timeout")
			e.logger.Warn("correlation scan timed out",
				xlogger.String("event", eventKey), xlogger.String("reaction", reactionKey))
		}

		e.mu.Lock()
		e.hypos[pairKey(eventKey, reactionKey)] = h
		e.mu.Unlock()

		e.alertMgr.OnCorrelation(ctx, h)
	}
	e.metrics.RecordLatency("correlation_pass", time.Since(start).Seconds())
}

func pairKey(eventKey, reactionKey string) string {
	return eventKey + "->" + reactionKey
}

const anomalyRingSize = 256

func (e *Engine) recordAnomaly(ev models.AnomalyEvent) {
	e.mu.Lock()
	e.anomalies = append(e.anomalies, ev)
	if len(e.anomalies) > anomalyRingSize {
		e.anomalies = e.anomalies[len(e.anomalies)-anomalyRingSize:]
	}
	e.mu.Unlock()
}

func logErr(err error) xlogger.Field { return xlogger.Error(err) }
