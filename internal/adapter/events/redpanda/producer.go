// Package redpanda publishes recommendation analytics events to a
// Redpanda/Kafka topic. Delivery is best-effort: a failed publish never
// fails the request that produced it.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// kafkaClient is the subset of kgo.Client the producer uses; tests stub it.
type kafkaClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Producer implements domain.EventPublisher on a Kafka topic.
type Producer struct {
	client kafkaClient
	topic  string
}

// recommendationEvent is the wire shape of a served-recommendation event.
type recommendationEvent struct {
	ID          string    `json:"id"`
	QueryText   string    `json:"query_text"`
	Engine      string    `json:"engine"`
	ItemIDs     []string  `json:"item_ids"`
	FinalScores []float64 `json:"final_scores"`
	ServedAt    time.Time `json:"served_at"`
	RequestID   string    `json:"request_id"`
}

// NewProducer connects to the given brokers and publishes to topic.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	slog.Info("redpanda producer created", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Producer{client: client, topic: topic}, nil
}

// NewProducerWithClient wraps an existing client; used by tests.
func NewProducerWithClient(client kafkaClient, topic string) *Producer {
	return &Producer{client: client, topic: topic}
}

// PublishRecommendation emits one event per served recommendation. The
// recommendation id keys the record so per-recommendation ordering holds.
func (p *Producer) PublishRecommendation(ctx domain.Context, rec domain.Recommendation) error {
	evt := recommendationEvent{
		ID:          rec.ID,
		QueryText:   rec.QueryText,
		Engine:      string(rec.Engine),
		ItemIDs:     rec.ItemIDs,
		FinalScores: rec.FinalScores,
		ServedAt:    rec.ServedAt,
		RequestID:   rec.RequestID,
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("op=events.marshal: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(rec.ID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "engine", Value: []byte(rec.Engine)},
			{Key: "request_id", Value: []byte(rec.RequestID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("op=events.produce: %w", err)
	}
	slog.Debug("recommendation event published",
		slog.String("recommendation_id", rec.ID),
		slog.String("topic", p.topic))
	return nil
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() { p.client.Close() }
