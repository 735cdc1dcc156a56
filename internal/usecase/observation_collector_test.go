package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"TrustPulse/internal/domain/models"
	mid "TrustPulse/internal/middleware"
	"TrustPulse/pkg/metrics"
)

type captureSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *captureSink) Submit(ctx context.Context, obs *models.Observation) error {
	s.mu.Lock()
	s.keys = append(s.keys, obs.SignalKey)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// flakyStream fails its first read session the way a dropped transport
// does: an error on errCh, then both channels closed. The session after a
// reconnect delivers observations normally.
type flakyStream struct {
	mu         sync.Mutex
	sessions   int
	reconnects int
	connected  bool
}

func (f *flakyStream) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *flakyStream) Subscribe(ctx context.Context) error { return nil }

func (f *flakyStream) Read(ctx context.Context) (<-chan *models.Observation, <-chan error) {
	f.mu.Lock()
	f.sessions++
	n := f.sessions
	f.mu.Unlock()

	obsCh := make(chan *models.Observation, 4)
	errCh := make(chan error, 1)
	if n == 1 {
		errCh <- fmt.Errorf("read: connection reset")
		close(obsCh)
		close(errCh)
		return obsCh, errCh
	}
	obsCh <- &models.Observation{SignalKey: "price.spot", Value: 42, Timestamp: time.Now(), Producer: "test"}
	return obsCh, errCh
}

func (f *flakyStream) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	f.reconnects++
	f.mu.Unlock()
	return f.Connect(ctx)
}

func (f *flakyStream) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *flakyStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *flakyStream) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

func TestCollectorRecoversAfterStreamError(t *testing.T) {
	stream := &flakyStream{}
	sink := &captureSink{}
	pipe := mid.NewIngestPipeline(sink, metrics.Noop{})
	c := NewObservationCollector(stream, pipe, metrics.Noop{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = c.Shutdown(context.Background())
	})

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("no observation delivered after stream error: reconnects=%d", stream.reconnectCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
	if stream.reconnectCount() == 0 {
		t.Fatalf("collector never reconnected after the read loop died")
	}
}
