// Package relay moves audit outbox entries onto a Kafka topic.
//
// The outbox table is the source of truth; the relay polls it, produces each
// batch synchronously and only then marks the batch published. A crash
// between produce and mark re-sends the batch, so consumers must dedupe on
// the entry ID carried in the record key header.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Entry is one unpublished outbox row.
type Entry struct {
	ID      string
	Key     string
	Type    string
	Payload []byte
}

// Source reads and acknowledges outbox entries.
type Source interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Producer publishes a batch of entries, returning once all are acknowledged.
type Producer interface {
	Publish(ctx context.Context, entries []Entry) error
}

// Relay polls Source and forwards to Producer.
type Relay struct {
	source    Source
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func New(source Source, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		producer:  producer,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// Drain publishes batches until the outbox is empty and returns the count sent.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	sent := 0
	for {
		entries, err := r.source.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return sent, err
		}
		if len(entries) == 0 {
			return sent, nil
		}
		if err := r.producer.Publish(ctx, entries); err != nil {
			return sent, fmt.Errorf("publish outbox batch: %w", err)
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := r.source.MarkPublished(ctx, ids, time.Now()); err != nil {
			return sent, err
		}
		sent += len(entries)
		if len(entries) < r.batchSize {
			return sent, nil
		}
	}
}

// KafkaProducer publishes entries with franz-go.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

// NewKafkaProducer dials the seed brokers. Close releases the client.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaProducer{client: client, topic: topic}, nil
}

func (p *KafkaProducer) Publish(ctx context.Context, entries []Entry) error {
	records := make([]*kgo.Record, len(entries))
	for i, e := range entries {
		records[i] = &kgo.Record{
			Topic: p.topic,
			Key:   []byte(e.Key),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(e.ID)},
				{Key: "event_type", Value: []byte(e.Type)},
			},
		}
	}
	return p.client.ProduceSync(ctx, records...).FirstErr()
}

// Ping verifies broker connectivity.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}
