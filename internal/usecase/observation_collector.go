package usecase

import (
	"context"

	"TrustPulse/internal/domain/models"
	drepo "TrustPulse/internal/domain/repository"
	mid "TrustPulse/internal/middleware"
)

// ObservationCollector reads an adapter's observation stream and feeds the
// ingest pipeline.
type ObservationCollector struct {
	stream  drepo.ObservationStream
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
}

func NewObservationCollector(stream drepo.ObservationStream, pipe *mid.IngestPipeline, metrics drepo.Metrics) *ObservationCollector {
	return &ObservationCollector{stream: stream, pipe: pipe, metrics: metrics}
}

// IsConnected reports whether the upstream feed is connected.
func (c *ObservationCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *ObservationCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	obsCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, obsCh, errCh)
	return nil
}

// consume drains one Read session. When the stream's read loop dies it
// closes both channels; consume then reconnects and picks up the fresh
// channel pair from the next Read call.
func (c *ObservationCollector) consume(ctx context.Context, obsCh <-chan *models.Observation, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				break
			}
			if err != nil {
				c.metrics.RecordError("stream")
			}
		case obs, ok := <-obsCh:
			if !ok {
				obsCh = nil
				break
			}
			if obs != nil {
				_ = c.pipe.Process(ctx, obs)
			}
		}

		if obsCh == nil && errCh == nil {
			for ctx.Err() == nil {
				if err := c.stream.Reconnect(ctx); err != nil {
					c.metrics.RecordError("reconnect")
					continue
				}
				obsCh, errCh = c.stream.Read(ctx)
				break
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *ObservationCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
