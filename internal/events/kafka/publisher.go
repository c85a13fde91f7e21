// Package kafka publishes registry events to a Kafka topic for off-process
// indexers. Delivery is asynchronous and fail-open: a broker outage is
// logged, never surfaced to the caller, because the state transition the
// event describes has already committed.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"selns/internal/events"
	"selns/pkg/platform/circuit"
)

// Publisher writes events to one topic, keyed by labelhash so per-name
// ordering survives partitioning. A circuit breaker skips produce attempts
// while the broker is down so request latency never pays for a dead sink.
type Publisher struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	breaker *circuit.Breaker
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		// Existing topics surface as an error from some brokers; only
		// refuse to start when the cluster is unreachable.
		if !strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") {
			logger.WarnContext(ctx, "event topic bootstrap", "topic", topic, "error", err)
		}
	}

	return &Publisher{
		client:  client,
		topic:   topic,
		logger:  logger,
		breaker: circuit.New(5, 30*time.Second),
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) {
	if !p.breaker.Allow() {
		p.logger.WarnContext(ctx, "event dropped, broker circuit open", "kind", e.Kind)
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event", "kind", e.Kind, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.Label),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.breaker.RecordFailure()
			p.logger.Error("produce event", "kind", e.Kind, "error", err)
			return
		}
		p.breaker.RecordSuccess()
	})
}

// Close flushes pending produces and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
