package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"TrustPulse/internal/domain/models"
	"TrustPulse/pkg/metrics"
)

type captureSink struct {
	mu        sync.Mutex
	published []models.Alert
}

func (s *captureSink) Publish(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	s.published = append(s.published, *a)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) PublishBatch(ctx context.Context, alerts []*models.Alert) error {
	for _, a := range alerts {
		if err := s.Publish(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func newTestManager(sink *captureSink) *Manager {
	return NewManager(Config{
		WarnAt:     0.35,
		CriticalAt: 0.7,
		EscalateAt: 0.8,
		CoolDown:   5 * time.Minute,
		Retention:  time.Hour,
	}, metrics.Noop{}, sink)
}

func spike(key string, severity float64) models.AnomalyEvent {
	return models.AnomalyEvent{
		SignalKey:  key,
		Kind:       models.AnomalyVolumeSpike,
		Severity:   severity,
		DetectedAt: time.Now(),
	}
}

func TestOnAnomalyOpensNewAlert(t *testing.T) {
	sink := &captureSink{}
	m := newTestManager(sink)

	a := m.OnAnomaly(context.Background(), spike("price.spot", 0.5))
	if a.State != models.AlertNew {
		t.Fatalf("state = %s, want NEW", a.State)
	}
	if a.Priority != models.PriorityWarning {
		t.Fatalf("priority = %s, want warning", a.Priority)
	}
	if a.Fingerprint != "price.spot|volume-spike" {
		t.Fatalf("fingerprint = %s", a.Fingerprint)
	}
	if sink.count() != 1 {
		t.Fatalf("published = %d, want 1", sink.count())
	}
}

func TestRepeatAnomalyDedupesAndActivates(t *testing.T) {
	sink := &captureSink{}
	m := newTestManager(sink)
	ctx := context.Background()

	first := m.OnAnomaly(ctx, spike("price.spot", 0.4))
	second := m.OnAnomaly(ctx, spike("price.spot", 0.4))

	if second.ID != first.ID {
		t.Fatalf("expected same alert, got %s and %s", first.ID, second.ID)
	}
	if second.State != models.AlertActive {
		t.Fatalf("state = %s, want ACTIVE", second.State)
	}
	// NEW and the NEW->ACTIVE transition both notify; refreshes do not
	third := m.OnAnomaly(ctx, spike("price.spot", 0.4))
	if third.State != models.AlertActive {
		t.Fatalf("state = %s, want ACTIVE", third.State)
	}
	if sink.count() != 2 {
		t.Fatalf("published = %d, want 2", sink.count())
	}
	if got := len(m.Open()); got != 1 {
		t.Fatalf("open alerts = %d, want 1", got)
	}
}

func TestSeverityRaisesPriorityAndEscalates(t *testing.T) {
	sink := &captureSink{}
	m := newTestManager(sink)
	ctx := context.Background()

	m.OnAnomaly(ctx, spike("price.spot", 0.2)) // NEW, info
	a := m.OnAnomaly(ctx, spike("price.spot", 0.2))
	if a.Priority != models.PriorityInfo {
		t.Fatalf("priority = %s, want info", a.Priority)
	}

	a = m.OnAnomaly(ctx, spike("price.spot", 0.9))
	if a.State != models.AlertEscalated {
		t.Fatalf("state = %s, want ESCALATED", a.State)
	}
	if a.Priority != models.PriorityCritical {
		t.Fatalf("priority = %s, want critical", a.Priority)
	}
	// severity never decreases on refresh
	a = m.OnAnomaly(ctx, spike("price.spot", 0.1))
	if a.Severity != 0.9 {
		t.Fatalf("severity = %v, want 0.9", a.Severity)
	}
}

func TestSweepLifecycle(t *testing.T) {
	sink := &captureSink{}
	m := newTestManager(sink)
	ctx := context.Background()

	m.OnAnomaly(ctx, spike("price.spot", 0.5))

	// quiet past the cool-down resolves
	m.Sweep(ctx, time.Now().Add(6*time.Minute))
	resolved := m.List(models.AlertResolved)
	if len(resolved) != 1 {
		t.Fatalf("resolved = %d, want 1", len(resolved))
	}
	if len(m.Open()) != 0 {
		t.Fatalf("expected no open alerts")
	}

	// resolved past retention expires
	m.Sweep(ctx, resolved[0].ResolvedAt.Add(2*time.Hour))
	if got := m.List(models.AlertExpired); len(got) != 1 {
		t.Fatalf("expired = %d, want 1", len(got))
	}

	// expired entries are dropped on the next pass
	m.Sweep(ctx, time.Now().Add(10*time.Hour))
	if got := m.List(""); len(got) != 0 {
		t.Fatalf("alerts after gc = %d, want 0", len(got))
	}
}

func TestReopenAfterResolveCreatesFreshAlert(t *testing.T) {
	sink := &captureSink{}
	m := newTestManager(sink)
	ctx := context.Background()

	first := m.OnAnomaly(ctx, spike("price.spot", 0.5))
	m.Sweep(ctx, time.Now().Add(6*time.Minute))

	second := m.OnAnomaly(ctx, spike("price.spot", 0.5))
	if second.ID == first.ID {
		t.Fatalf("expected a fresh alert after resolution")
	}
	if second.State != models.AlertNew {
		t.Fatalf("state = %s, want NEW", second.State)
	}
}

func TestOnCorrelationIgnoresNonSignificant(t *testing.T) {
	sink := &captureSink{}
	m := newTestManager(sink)
	ctx := context.Background()

	for _, st := range []models.HypothesisStatus{models.HypothesisNoCorrelation, models.HypothesisInconclusive} {
		_, opened := m.OnCorrelation(ctx, models.CorrelationHypothesis{Status: st})
		if opened {
			t.Fatalf("opened alert for %s", st)
		}
	}
	if sink.count() != 0 {
		t.Fatalf("published = %d, want 0", sink.count())
	}

	a, opened := m.OnCorrelation(ctx, models.CorrelationHypothesis{
		EventKey:    "social.mentions",
		ReactionKey: "price.spot",
		Status:      models.HypothesisSignificant,
		Coefficient: -0.85,
		BestLag:     3 * time.Minute,
		ComputedAt:  time.Now(),
	})
	if !opened {
		t.Fatalf("expected alert for significant hypothesis")
	}
	if a.Fingerprint != "social.mentions->price.spot|lag-correlation" {
		t.Fatalf("fingerprint = %s", a.Fingerprint)
	}
	if a.Severity != 0.85 {
		t.Fatalf("severity = %v, want |r|", a.Severity)
	}
	if a.Correlation == nil {
		t.Fatalf("expected hypothesis attached")
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	m := newTestManager(&captureSink{})
	ctx := context.Background()

	m.OnAnomaly(ctx, spike("a.one", 0.5))
	time.Sleep(2 * time.Millisecond)
	m.OnAnomaly(ctx, spike("b.two", 0.5))

	got := m.List("")
	if len(got) != 2 {
		t.Fatalf("alerts = %d, want 2", len(got))
	}
	if got[0].SignalKey != "b.two" {
		t.Fatalf("expected newest first, got %s", got[0].SignalKey)
	}
}
