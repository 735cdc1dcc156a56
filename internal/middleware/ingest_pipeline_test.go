package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrustPulse/internal/domain/models"
	"TrustPulse/pkg/metrics"
)

type stubSink struct {
	mu       sync.Mutex
	accepted []*models.Observation
	fail     bool
}

func (s *stubSink) Submit(ctx context.Context, obs *models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("engine unavailable")
	}
	s.accepted = append(s.accepted, obs)
	return nil
}

func (s *stubSink) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accepted)
}

func validObs(producer string) *models.Observation {
	return &models.Observation{
		SignalKey: "price.spot",
		Value:     42,
		Timestamp: time.Now(),
		Producer:  producer,
	}
}

func TestProcessForwardsValidObservation(t *testing.T) {
	sink := &stubSink{}
	p := NewIngestPipeline(sink, metrics.Noop{})

	if err := p.Process(context.Background(), validObs("feed")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("accepted = %d, want 1", sink.count())
	}
}

func TestProcessRejectsInvalidEnvelopes(t *testing.T) {
	sink := &stubSink{}
	p := NewIngestPipeline(sink, metrics.Noop{})
	ctx := context.Background()

	cases := []*models.Observation{
		nil,
		{Value: 1, Timestamp: time.Now()},        // empty key
		{SignalKey: "price.spot", Value: 1},      // zero timestamp
		{SignalKey: "price.spot", Value: 1, Timestamp: time.Now(), Quality: "bogus"},
	}
	for i, obs := range cases {
		if err := p.Process(ctx, obs); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if sink.count() != 0 {
		t.Fatalf("accepted = %d, want 0", sink.count())
	}
}

func TestProcessThrottlesNoisyProducer(t *testing.T) {
	sink := &stubSink{}
	p := NewIngestPipeline(sink, metrics.Noop{}, WithMaxRPS(5))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := p.Process(ctx, validObs("noisy")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	// the bucket starts full at capacity 5, so at most a few refills sneak in
	if got := sink.count(); got < 5 || got > 10 {
		t.Fatalf("accepted = %d, want roughly the bucket capacity", got)
	}

	// a different producer has its own bucket
	if err := p.Process(ctx, validObs("quiet")); err != nil {
		t.Fatalf("process: %v", err)
	}
}

func TestProcessBuffersOnDownstreamError(t *testing.T) {
	sink := &stubSink{fail: true}
	p := NewIngestPipeline(sink, metrics.Noop{}, WithBufferSize(8))
	ctx := context.Background()

	if err := p.Process(ctx, validObs("feed")); err == nil {
		t.Fatalf("expected downstream error")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("buffered = %d, want 1", len(p.bufCh))
	}

	// recovery drains the buffer
	sink.setFail(false)
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("flushed = %d, want 1", sink.count())
	}
}

func TestBufferOverflowDropsSilently(t *testing.T) {
	sink := &stubSink{fail: true}
	p := NewIngestPipeline(sink, metrics.Noop{}, WithBufferSize(2), WithMaxRPS(100))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := p.Process(ctx, validObs("feed")); err == nil {
			t.Fatalf("expected downstream error")
		}
	}
	if len(p.bufCh) != 2 {
		t.Fatalf("buffered = %d, want capacity 2", len(p.bufCh))
	}
}

func TestStartIsIdempotent(t *testing.T) {
	p := NewIngestPipeline(&stubSink{}, metrics.Noop{})
	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	p.Stop()
	p.Stop()
}
