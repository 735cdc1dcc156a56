package repository

import (
	"context"
	"fmt"

	"TrustPulse/internal/domain/models"
	domrepo "TrustPulse/internal/domain/repository"
	xhttp "TrustPulse/pkg/http"
	pkgkafka "TrustPulse/pkg/kafka"
	"TrustPulse/pkg/queue"
)

// KafkaAlertSink publishes alert state changes to a Kafka topic, keyed by
// fingerprint so consumers see transitions for one alert in order.
type KafkaAlertSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertSink(producer *pkgkafka.Producer, topic string) domrepo.AlertSink {
	return &KafkaAlertSink{producer: producer, topic: topic}
}

func (s *KafkaAlertSink) Publish(ctx context.Context, a *models.Alert) error {
	return s.producer.Publish(ctx, s.topic, []byte(a.Fingerprint), a)
}

func (s *KafkaAlertSink) PublishBatch(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(alerts))
	for i, a := range alerts {
		msgs[i] = pkgkafka.Message{Key: []byte(a.Fingerprint), Value: a}
	}
	return s.producer.PublishBatch(ctx, s.topic, msgs)
}

func (s *KafkaAlertSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// WebhookAlertSink POSTs alert envelopes to a collaborator endpoint.
// Formatting beyond the raw JSON envelope is the receiver's business.
type WebhookAlertSink struct {
	url    string
	client *xhttp.Client
}

func NewWebhookAlertSink(url string, client *xhttp.Client) domrepo.AlertSink {
	return &WebhookAlertSink{url: url, client: client}
}

func (s *WebhookAlertSink) Publish(ctx context.Context, a *models.Alert) error {
	resp, err := s.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    a,
	})
	if err != nil {
		return fmt.Errorf("webhook publish: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook publish: status %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookAlertSink) PublishBatch(ctx context.Context, alerts []*models.Alert) error {
	for _, a := range alerts {
		if err := s.Publish(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *WebhookAlertSink) Close() error { return nil }

// HistoryAlertSink appends every transition to the history store.
type HistoryAlertSink struct {
	store domrepo.HistoryStore
}

func NewHistoryAlertSink(store domrepo.HistoryStore) domrepo.AlertSink {
	return &HistoryAlertSink{store: store}
}

func (s *HistoryAlertSink) Publish(ctx context.Context, a *models.Alert) error {
	return s.store.StoreAlert(ctx, a)
}

func (s *HistoryAlertSink) PublishBatch(ctx context.Context, alerts []*models.Alert) error {
	for _, a := range alerts {
		if err := s.store.StoreAlert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *HistoryAlertSink) Close() error { return nil }

// MultiSink fans one alert out to several sinks. A failing sink routes the
// alert to the retry queue when one is configured; other sinks still get it.
type MultiSink struct {
	sinks  []domrepo.AlertSink
	retryQ queue.QueueService
}

func NewMultiSink(retryQ queue.QueueService, sinks ...domrepo.AlertSink) domrepo.AlertSink {
	return &MultiSink{sinks: sinks, retryQ: retryQ}
}

const alertRetryMsgType = "alert_delivery"

func (s *MultiSink) Publish(ctx context.Context, a *models.Alert) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, a); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if s.retryQ != nil {
				_ = s.retryQ.PublishMessage(ctx, alertRetryMsgType, a)
			}
		}
	}
	return firstErr
}

func (s *MultiSink) PublishBatch(ctx context.Context, alerts []*models.Alert) error {
	var firstErr error
	for _, a := range alerts {
		if err := s.Publish(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *MultiSink) Close() error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
