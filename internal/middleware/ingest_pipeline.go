package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrustPulse/internal/domain/models"
	drepo "TrustPulse/internal/domain/repository"
	"TrustPulse/internal/service/ratelimit"
)

// Sink is the minimal downstream the pipeline needs (the engine).
type Sink interface {
	Submit(ctx context.Context, obs *models.Observation) error
}

// IngestPipeline sits between observation producers and the engine. It
// validates envelopes, throttles noisy producers, and buffers when the
// engine rejects under backpressure so transient stalls do not lose data.
type IngestPipeline struct {
	sink    Sink
	metrics drepo.Metrics
	limiter *ratelimit.Limiter

	maxRPS  float64
	bufSize int
	bufCh   chan *models.Observation
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS caps accepted observations per second per producer.
func WithMaxRPS(n float64) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewIngestPipeline(sink Sink, metrics drepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		sink:    sink,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  50,
		bufSize: 2000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Observation, p.bufSize)
	return p
}

// Start launches background flushing of buffered observations.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case obs := <-p.bufCh:
				if obs == nil {
					continue
				}
				if err := p.sink.Submit(ctx, obs); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- obs:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards an observation, buffering on
// downstream errors.
func (p *IngestPipeline) Process(ctx context.Context, obs *models.Observation) error {
	if err := validateObservation(obs); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	producer := obs.Producer
	if producer == "" {
		producer = "default"
	}
	if !p.limiter.Allow(producer, p.maxRPS, p.maxRPS) {
		p.metrics.RecordError("pipeline_throttle")
		return nil // throttled, dropped silently
	}

	if err := p.sink.Submit(ctx, obs); err != nil {
		p.metrics.RecordError("pipeline_submit")
		select {
		case p.bufCh <- obs:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateObservation(obs *models.Observation) error {
	if obs == nil {
		return fmt.Errorf("observation nil")
	}
	if obs.SignalKey == "" {
		return fmt.Errorf("signal key empty")
	}
	if obs.Timestamp.IsZero() {
		return fmt.Errorf("timestamp missing")
	}
	switch obs.Quality {
	case models.QualityOK, models.QualityStale, models.QualityPartial:
	default:
		return fmt.Errorf("unknown quality flag %q", obs.Quality)
	}
	return nil
}
