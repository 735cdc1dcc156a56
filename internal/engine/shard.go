package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"TrustPulse/internal/anomaly"
	"TrustPulse/internal/domain/models"
)

// shardMsg carries either one observation or a tick barrier. A barrier is
// acknowledged only after every message queued before it has been applied,
// which is what gives cross-key passes a consistent snapshot.
type shardMsg struct {
	obs     *models.Observation
	barrier chan struct{}
}

// shard owns the rolling windows for the signal keys hashed onto it. All
// mutations for those keys happen on the shard goroutine, so per-key updates
// are serialized without per-key locks.
type shard struct {
	id        int
	queue     chan shardMsg
	detectors map[string]*anomaly.KeyDetector
	eng       *Engine
}

func newShard(id int, queueSize int, eng *Engine) *shard {
	return &shard{
		id:        id,
		queue:     make(chan shardMsg, queueSize),
		detectors: make(map[string]*anomaly.KeyDetector),
		eng:       eng,
	}
}

func (s *shard) run(ctx context.Context) {
	name := fmt.Sprintf("shard-%d", s.id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.eng.stopCh:
			return
		case msg, ok := <-s.queue:
			if !ok {
				return
			}
			if msg.barrier != nil {
				close(msg.barrier)
				continue
			}
			if msg.obs != nil {
				s.apply(ctx, msg.obs)
				s.eng.metrics.RecordQueueDepth(name, len(s.queue))
			}
		}
	}
}

// apply runs the per-observation path: normalize, update the key's window,
// evaluate the cheap O(1) rules, surface anomalies. A failure on one key
// never aborts the shard loop.
func (s *shard) apply(ctx context.Context, obs *models.Observation) {
	start := time.Now()

	score, err := s.eng.normalizer.Normalize(obs)
	if err != nil {
		// registration is checked at Submit; reaching this means a race
		// against configuration, which we refuse to paper over
		s.eng.metrics.RecordError("normalize")
		s.eng.logger.Error("normalize failed", logErr(err))
		return
	}

	det, ok := s.detectors[obs.SignalKey]
	if !ok {
		det = anomaly.NewKeyDetector(s.eng.cfg.Detector)
		s.detectors[obs.SignalKey] = det
	}

	ev, status := det.Observe(obs.SignalKey, obs.Timestamp, obs.Value, effectiveQuality(obs))
	if status == models.StatusWarming {
		s.eng.metrics.RecordError("insufficient_data")
	}
	if ev != nil {
		s.eng.metrics.RecordAnomaly(string(ev.Kind))
		s.eng.alertMgr.OnAnomaly(ctx, *ev)
		s.eng.recordAnomaly(*ev)
	}

	w := det.Window()
	last, _ := w.Last()
	s.eng.updateSnapshot(score, keyStats{
		last:   last,
		mean:   w.Mean(),
		stddev: w.StdDev(),
		count:  w.Len(),
		status: det.Status(),
	})
	s.eng.metrics.RecordScore(obs.SignalKey, score.Score)

	if s.eng.history != nil && !score.NoData {
		sc := score
		if err := s.eng.history.StoreScore(ctx, &sc); err != nil {
			s.eng.metrics.RecordError("history_score")
		}
	}
	s.eng.metrics.RecordLatency("observe", time.Since(start).Seconds())
}

// effectiveQuality folds non-finite values into the quality flag so the
// detector can exclude them from statistics without a second NaN check.
func effectiveQuality(obs *models.Observation) models.QualityFlag {
	if obs.Quality != models.QualityOK {
		return obs.Quality
	}
	if math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) {
		return models.QualityPartial
	}
	return models.QualityOK
}
